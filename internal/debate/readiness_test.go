package debate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllReadyDuel(t *testing.T) {
	now := newFakeNow()
	s := newDuel(t)
	g := NewReadinessGate(s, 3*time.Second, now.Now)

	assert.False(t, g.AllReady())
	ev, err := g.SetReady("alice", true)
	require.NoError(t, err)
	assert.Equal(t, GateNone, ev)
	assert.False(t, g.AllReady())

	ev, err = g.SetReady("bob", true)
	require.NoError(t, err)
	assert.Equal(t, GateCountdownStarted, ev)
	assert.True(t, g.AllReady())

	ev, err = g.SetReady("alice", false)
	require.NoError(t, err)
	assert.Equal(t, GateCountdownCancelled, ev)
	assert.False(t, g.AllReady())
}

func TestAllReadyNeedsBothSeats(t *testing.T) {
	s := NewSession("solo", ModeDuel, time.Now())
	_, _, err := s.AddParticipant(Participant{UserID: "alice"})
	require.NoError(t, err)
	g := NewReadinessGate(s, 0, nil)
	ev, err := g.SetReady("alice", true)
	require.NoError(t, err)
	assert.Equal(t, GateNone, ev)
	assert.False(t, g.AllReady())
}

func TestCountdownExpiresOnce(t *testing.T) {
	now := newFakeNow()
	s := newDuel(t)
	g := NewReadinessGate(s, 3*time.Second, now.Now)
	_, _ = g.SetReady("alice", true)
	_, _ = g.SetReady("bob", true)

	now.Advance(2 * time.Second)
	assert.False(t, g.Expire())
	assert.Equal(t, 1, g.CountdownRemaining())

	now.Advance(time.Second)
	assert.True(t, g.Expire())
	assert.False(t, g.Expire(), "a retried expiry must not fire again")
}

func TestCountdownExpiryGuardedBySetup(t *testing.T) {
	now := newFakeNow()
	s := newDuel(t)
	g := NewReadinessGate(s, time.Second, now.Now)
	_, _ = g.SetReady("alice", true)
	_, _ = g.SetReady("bob", true)

	// Someone already advanced the session, e.g. a client proposal.
	require.NoError(t, s.Advance(PhaseOpeningFor))
	now.Advance(2 * time.Second)
	assert.False(t, g.Expire())
}

func TestCancelledCountdownDoesNotExpire(t *testing.T) {
	now := newFakeNow()
	s := newDuel(t)
	g := NewReadinessGate(s, time.Second, now.Now)
	_, _ = g.SetReady("alice", true)
	_, _ = g.SetReady("bob", true)
	_, _ = g.SetReady("bob", false)
	now.Advance(5 * time.Second)
	assert.False(t, g.Expire())
	assert.Equal(t, 0, g.CountdownRemaining())
}

func TestDepartureCancelsCountdown(t *testing.T) {
	s := newDuel(t)
	g := NewReadinessGate(s, time.Second, nil)
	_, _ = g.SetReady("alice", true)
	_, _ = g.SetReady("bob", true)
	require.True(t, g.Counting())

	s.RemoveParticipant("bob")
	assert.Equal(t, GateCountdownCancelled, g.Recheck())
}

func TestFourMemberTeamCountdownStartsOnce(t *testing.T) {
	s := NewSession("teams", ModeTeam, time.Now())
	s.Teams = []string{"red", "blue"}
	for i := 1; i <= 4; i++ {
		_, _, err := s.AddParticipant(Participant{UserID: fmt.Sprintf("red-%d", i), TeamID: "red"})
		require.NoError(t, err)
	}
	_, _, err := s.AddParticipant(Participant{UserID: "blue-1", TeamID: "blue"})
	require.NoError(t, err)

	g := NewReadinessGate(s, DefaultCountdown, nil)
	_, err = g.SetReady("blue-1", true)
	require.NoError(t, err)

	starts := 0
	for i := 1; i <= 3; i++ {
		ev, err := g.SetReady(fmt.Sprintf("red-%d", i), true)
		require.NoError(t, err)
		if ev == GateCountdownStarted {
			starts++
		}
	}
	assert.False(t, g.AllReady(), "3 of 4 ready")
	assert.Equal(t, 0, starts)

	ev, err := g.SetReady("red-4", true)
	require.NoError(t, err)
	assert.Equal(t, GateCountdownStarted, ev)

	// Re-sending ready does not restart the countdown.
	ev, err = g.SetReady("red-4", true)
	require.NoError(t, err)
	assert.Equal(t, GateNone, ev)
}

func TestTeamNeedsEveryExpectedTeamPresent(t *testing.T) {
	s := NewSession("teams", ModeTeam, time.Now())
	s.Teams = []string{"red", "blue"}
	_, _, err := s.AddParticipant(Participant{UserID: "r1", TeamID: "red"})
	require.NoError(t, err)
	g := NewReadinessGate(s, 0, nil)
	_, err = g.SetReady("r1", true)
	require.NoError(t, err)
	assert.False(t, g.AllReady())
}

func TestReadyAfterStartIsOutOfOrder(t *testing.T) {
	s := newDuel(t)
	g := NewReadinessGate(s, 0, nil)
	require.NoError(t, s.Advance(PhaseOpeningFor))
	_, err := g.SetReady("alice", true)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestAllReadyTogglingProperty(t *testing.T) {
	s := NewSession("teams", ModeTeam, time.Now())
	users := []Participant{
		{UserID: "r1", TeamID: "red"}, {UserID: "r2", TeamID: "red"},
		{UserID: "b1", TeamID: "blue"}, {UserID: "b2", TeamID: "blue"},
	}
	for _, p := range users {
		_, _, err := s.AddParticipant(p)
		require.NoError(t, err)
	}
	g := NewReadinessGate(s, 0, nil)
	for _, p := range users {
		_, _ = g.SetReady(p.UserID, true)
	}
	require.True(t, g.AllReady())
	for _, p := range users {
		_, _ = g.SetReady(p.UserID, false)
		assert.False(t, g.AllReady(), "unready %s", p.UserID)
		_, _ = g.SetReady(p.UserID, true)
		assert.True(t, g.AllReady())
	}
}
