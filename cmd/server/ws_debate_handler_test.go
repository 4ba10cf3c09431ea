package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"debatehub/internal/debate"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpectatorServer(t *testing.T) (*DebateHub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewDebateHub(ctx, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := gin.New()
	router.GET("/ws/spectate/:debateID", hub.ServeSpectator)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialSpectator(t *testing.T, base, debateID, spectatorID string) *websocket.Conn {
	t.Helper()
	url := base + "/ws/spectate/" + debateID
	if spectatorID != "" {
		url += "?spectatorId=" + spectatorID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) debate.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev debate.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readUntil skips presence updates and returns the first event of type.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) debate.Event {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestSpectatorPresence(t *testing.T) {
	hub, base := newSpectatorServer(t)

	first := dialSpectator(t, base, "d1", "")
	var presence debate.PresencePayload
	ev := readEvent(t, first)
	require.Equal(t, debate.EventPresence, ev.Type)
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, 1, presence.Connected)

	dialSpectator(t, base, "d1", "")
	ev = readUntil(t, first, debate.EventPresence)
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, 2, presence.Connected)
	assert.Equal(t, 2, hub.Spectators("d1"))
	assert.Zero(t, hub.Spectators("d2"))
}

func TestSpectatorsReceiveRoomBroadcasts(t *testing.T) {
	hub, base := newSpectatorServer(t)
	conn := dialSpectator(t, base, "d1", "")
	other := dialSpectator(t, base, "d2", "")
	readEvent(t, conn)
	readEvent(t, other)

	hub.Publish("d1", "phaseChange", map[string]string{"phase": "openingFor"})

	ev := readUntil(t, conn, "phaseChange")
	assert.JSONEq(t, `{"phase":"openingFor"}`, string(ev.Payload))
	assert.NotEmpty(t, ev.ID)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestSpectatorReaction(t *testing.T) {
	_, base := newSpectatorServer(t)
	sender := dialSpectator(t, base, "d1", "fan-1")
	readEvent(t, sender)
	watcher := dialSpectator(t, base, "d1", "")
	readUntil(t, sender, debate.EventPresence)

	require.NoError(t, sender.WriteJSON(map[string]any{
		"type":    "reaction",
		"payload": map[string]string{"reaction": "👏", "spectatorHash": "forged"},
	}))

	ev := readUntil(t, watcher, debate.EventReaction)
	var payload debate.ReactionPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "👏", payload.Reaction)
	assert.Equal(t, spectatorHash("fan-1"), payload.SpectatorHash)
}

func TestSpectatorReactionRateLimited(t *testing.T) {
	_, base := newSpectatorServer(t)
	conn := dialSpectator(t, base, "d1", "fan-1")
	readEvent(t, conn)

	for i := 0; i < 6; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "reaction", "payload": map[string]string{"reaction": "🔥"}}))
	}

	reactions, limited := 0, 0
	for reactions+limited < 6 {
		ev := readEvent(t, conn)
		switch ev.Type {
		case debate.EventReaction:
			reactions++
		case "error":
			assert.JSONEq(t, `{"code":"rate_limited"}`, string(ev.Payload))
			limited++
		}
	}
	assert.Equal(t, 5, reactions)
	assert.Equal(t, 1, limited)
}

func TestSpectatorRejectsUnknownMessages(t *testing.T) {
	_, base := newSpectatorServer(t)
	conn := dialSpectator(t, base, "d1", "")
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "phaseChange", "payload": map[string]string{"phase": "finished"}}))
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.JSONEq(t, `{"code":"unknown_type"}`, string(ev.Payload))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "reaction", "payload": map[string]string{"reaction": strings.Repeat("x", 40)}}))
	ev = readEvent(t, conn)
	assert.JSONEq(t, `{"code":"invalid_reaction"}`, string(ev.Payload))
}

// A spectator that stops reading is dropped once its queue fills; the
// broadcaster never waits on its socket.
func TestSlowSpectatorIsDropped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	hub := NewDebateHub(context.Background(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// No write pump runs, so nothing empties the queue.
	client := hub.Register("d1", conn, spectatorHash("slow"))
	require.Len(t, client.send, 1)

	for i := 0; i < spectatorSendBuffer; i++ {
		hub.Publish("d1", "timer", map[string]int{"remainingSeconds": i})
	}

	assert.Zero(t, hub.Spectators("d1"))
	select {
	case <-client.done:
	default:
		t.Fatal("slow spectator still open")
	}
}

func TestSpectatorHashIsStable(t *testing.T) {
	assert.Equal(t, spectatorHash("abc"), spectatorHash("abc"))
	assert.NotEqual(t, spectatorHash("abc"), spectatorHash("abd"))
	assert.Len(t, spectatorHash(""), 64)
	assert.NotEqual(t, spectatorHash(""), spectatorHash(""))
}

func TestSampleBundlesSplitBySide(t *testing.T) {
	bundles := sampleBundles()
	assert.Len(t, bundles[debate.StanceFor], 4)
	assert.Len(t, bundles[debate.StanceAgainst], 4)
	assert.Contains(t, bundles[debate.StanceFor], debate.PhaseCrossForAnswer)
	assert.Contains(t, bundles[debate.StanceAgainst], debate.PhaseCrossAgainstQuestion)
}
