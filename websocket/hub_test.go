package websocket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"debatehub/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(ctx, Options{}, Dependencies{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	st, err := hub.Status(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.False(t, st.Live)

	alice := testClient("alice")
	room, err := hub.Attach(RoomSpec{ID: "r1", Mode: debate.ModeDuel}, alice)
	require.NoError(t, err)
	msg, err := decodeInbound([]byte(`{"type":"roleSelection","role":"for"}`))
	require.NoError(t, err)
	room.post(messageEvent{client: alice, msg: msg})

	st, err = hub.Status(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.True(t, st.Live)
	assert.Equal(t, debate.PhaseSetup, st.Phase)
	assert.Equal(t, debate.StanceFor, st.Stance)

	st, err = hub.Status(ctx, "r1", "mallory")
	require.NoError(t, err)
	assert.True(t, st.Live)
	assert.Empty(t, st.Stance)
}

func TestDrainedRoomAcceptsNothing(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	queued := testClient("alice")
	require.True(t, f.room.tryPost(joinEvent{client: queued}))
	reply := make(chan debate.SessionStatus, 1)
	require.True(t, f.room.tryPost(statusEvent{userID: "alice", reply: reply}))

	f.room.drain()

	assert.True(t, queued.closed)
	assert.False(t, (<-reply).Live)
	assert.False(t, f.room.tryPost(joinEvent{client: testClient("bob")}))
}

// Joins racing the shutdown either fail to post or get closed by drain;
// none is left seated in a dead room.
func TestJoinsRacingDrainAreClosed(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []*Client
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := testClient(fmt.Sprintf("user-%d", i))
			if f.room.tryPost(joinEvent{client: c}) {
				mu.Lock()
				accepted = append(accepted, c)
				mu.Unlock()
			}
		}(i)
	}
	f.room.drain()
	wg.Wait()

	for _, c := range accepted {
		assert.True(t, c.closed, c.userID)
	}
}
