package debate

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDuel(t *testing.T) *Session {
	t.Helper()
	s := NewSession("room-1", ModeDuel, time.Now())
	_, _, err := s.AddParticipant(Participant{UserID: "alice", DisplayName: "Alice"})
	require.NoError(t, err)
	_, _, err = s.AddParticipant(Participant{UserID: "bob", DisplayName: "Bob"})
	require.NoError(t, err)
	return s
}

func TestAssignStanceConflictLeavesRolesUnchanged(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.AssignStance("alice", StanceFor))

	err := s.AssignStance("bob", StanceFor)
	assert.ErrorIs(t, err, ErrStanceTaken)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, map[string]Stance{"alice": StanceFor}, s.Roles())

	require.NoError(t, s.AssignStance("bob", StanceAgainst))
	st, ok := s.StanceOf("bob")
	require.True(t, ok)
	assert.Equal(t, StanceAgainst, st)
}

func TestAssignStanceSwitchOwnSide(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.AssignStance("alice", StanceFor))
	require.NoError(t, s.AssignStance("alice", StanceAgainst))
	require.NoError(t, s.AssignStance("bob", StanceFor))
	assert.Equal(t, map[string]Stance{"alice": StanceAgainst, "bob": StanceFor}, s.Roles())
}

func TestAssignStanceRejectedAfterSetup(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.Advance(PhaseOpeningFor))
	assert.ErrorIs(t, s.AssignStance("alice", StanceAgainst), ErrNotInSetup)
	assert.ErrorIs(t, s.SetTopic("new topic"), ErrNotInSetup)
}

func TestDuelRoomCapacity(t *testing.T) {
	s := newDuel(t)
	_, _, err := s.AddParticipant(Participant{UserID: "carol"})
	assert.ErrorIs(t, err, ErrRoomFull)

	// A reconnect of a present participant is not a new seat.
	p, existed, err := s.AddParticipant(Participant{UserID: "alice", DisplayName: "Alice B."})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "Alice B.", p.DisplayName)
}

func TestTeamModeRejectsThirdTeam(t *testing.T) {
	s := NewSession("room-t", ModeTeam, time.Now())
	for _, p := range []Participant{
		{UserID: "a1", TeamID: "red"},
		{UserID: "b1", TeamID: "blue"},
		{UserID: "a2", TeamID: "red"},
	} {
		_, _, err := s.AddParticipant(p)
		require.NoError(t, err)
	}
	_, _, err := s.AddParticipant(Participant{UserID: "g1", TeamID: "green"})
	assert.ErrorIs(t, err, ErrRoomFull)
	_, _, err = s.AddParticipant(Participant{UserID: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTeamStanceIsTeamGranular(t *testing.T) {
	s := NewSession("room-t", ModeTeam, time.Now())
	for _, p := range []Participant{
		{UserID: "a1", TeamID: "red"},
		{UserID: "a2", TeamID: "red"},
		{UserID: "b1", TeamID: "blue"},
	} {
		_, _, err := s.AddParticipant(p)
		require.NoError(t, err)
	}
	require.NoError(t, s.AssignStance("a1", StanceAgainst))
	st, ok := s.StanceOf("a2")
	require.True(t, ok)
	assert.Equal(t, StanceAgainst, st)
	assert.ErrorIs(t, s.AssignStance("b1", StanceAgainst), ErrStanceTaken)
}

func TestRemoveParticipantCleansReadinessAndRole(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.AssignStance("bob", StanceAgainst))
	require.NoError(t, s.SetReady("bob", true))

	assert.True(t, s.RemoveParticipant("bob"))
	assert.False(t, s.IsReady("bob"))
	_, held := s.SideWithStance(StanceAgainst)
	assert.False(t, held)
	assert.Equal(t, 0, s.ReadyCount())
	assert.False(t, s.RemoveParticipant("bob"))
}

func TestAdvanceNeverSkipsOrRegresses(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		s := newDuel(t)
		prev := s.Phase().Index()
		for i := 0; i < 40; i++ {
			proposal := Sequence[rng.Intn(len(Sequence))]
			err := s.Advance(proposal)
			cur := s.Phase().Index()
			if err == nil {
				assert.Equal(t, prev+1, cur)
			} else {
				assert.ErrorIs(t, err, ErrOutOfOrder)
				assert.Equal(t, prev, cur)
			}
			prev = cur
		}
	}
}

func TestAdvanceIsIdempotent(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.Advance(PhaseOpeningFor))
	assert.ErrorIs(t, s.Advance(PhaseOpeningFor), ErrOutOfOrder)
	assert.Equal(t, PhaseOpeningFor, s.Phase())
}

func TestStaleResyncToSetupIgnored(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.Advance(PhaseOpeningFor))
	err := s.Advance(PhaseSetup)
	require.Error(t, err)
	assert.Equal(t, "stale_resync", Code(err))
	assert.Equal(t, PhaseOpeningFor, s.Phase())
}

func TestAdvanceOutOfSetupCompletesRoles(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.AssignStance("bob", StanceFor))
	require.NoError(t, s.Advance(PhaseOpeningFor))
	assert.Equal(t, map[string]Stance{"alice": StanceAgainst, "bob": StanceFor}, s.Roles())
}

func TestAdvanceSealsOutgoingPhase(t *testing.T) {
	s := newDuel(t)
	require.NoError(t, s.AssignStance("alice", StanceFor))
	require.NoError(t, s.Advance(PhaseOpeningFor))
	require.NoError(t, s.Transcripts().Append(PhaseOpeningFor, StanceFor, "hello"))
	require.NoError(t, s.Advance(PhaseOpeningAgainst))

	text, ok := s.Transcripts().Sealed(PhaseOpeningFor, StanceFor)
	require.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.ErrorIs(t, s.Transcripts().Append(PhaseOpeningFor, StanceFor, "more"), ErrTranscriptSealed)
}

func TestVerdictAndJudgmentFlagSetOnce(t *testing.T) {
	s := newDuel(t)
	assert.True(t, s.MarkJudgmentRequested())
	assert.False(t, s.MarkJudgmentRequested())

	require.NoError(t, s.SetVerdict(json.RawMessage(`{"winner":"For"}`)))
	assert.ErrorIs(t, s.SetVerdict(json.RawMessage(`{"winner":"Against"}`)), ErrVerdictSet)
	assert.JSONEq(t, `{"winner":"For"}`, string(s.Verdict()))
}

func TestBotParticipantIsAlwaysReady(t *testing.T) {
	s := NewSession("bot-room", ModeDuel, time.Now())
	_, _, err := s.AddParticipant(Participant{UserID: "alice"})
	require.NoError(t, err)
	_, _, err = s.AddParticipant(Participant{UserID: "bot", Bot: true})
	require.NoError(t, err)
	require.NoError(t, s.SetReady("bot", false))
	assert.True(t, s.IsReady("bot"))
	assert.Equal(t, 1, s.HumanCount())
}
