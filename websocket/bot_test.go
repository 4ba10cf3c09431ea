package websocket

import (
	"context"
	"sync"
	"testing"

	"debatehub/internal/debate"
	"debatehub/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedBot struct {
	mu    sync.Mutex
	turns []services.BotTurn
}

func (b *scriptedBot) Speak(_ context.Context, turn services.BotTurn) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turn)
	return "The bot argues for " + string(turn.Phase) + ".", nil
}

func (b *scriptedBot) last() services.BotTurn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turns[len(b.turns)-1]
}

func TestBotOpponentSpeaksOnItsTurn(t *testing.T) {
	bot := &scriptedBot{}
	f := newFixture(t, debate.ModeDuel, Dependencies{Bot: bot})
	require.NoError(t, f.room.addBot())

	alice := f.attach(testClient("alice"))
	f.send(alice, `{"type":"topicChange","topic":"Ban cars"}`)
	f.send(alice, `{"type":"roleSelection","role":"against"}`)
	f.send(alice, `{"type":"ready","ready":true}`)
	f.tick(3)
	require.Equal(t, debate.PhaseOpeningFor, f.room.session.Phase())

	stance, ok := f.room.session.StanceOf(f.room.botID)
	require.True(t, ok)
	assert.Equal(t, debate.StanceFor, stance)

	f.nextEvent()
	text := f.room.session.Transcripts().Current(debate.PhaseOpeningFor, debate.StanceFor)
	assert.Equal(t, "The bot argues for openingFor.", text)

	speeches := ofType(drain(t, alice), TypeSpeechText)
	require.Len(t, speeches, 1)
	assert.Equal(t, botDisplayName, speeches[0].Username)

	f.send(alice, `{"type":"phaseChange","phase":"openingAgainst"}`)
	require.Equal(t, debate.PhaseOpeningFor, f.room.session.Phase())
	f.tick(60)
	require.Equal(t, debate.PhaseOpeningAgainst, f.room.session.Phase())
	f.send(alice, `{"type":"speechText","speechText":"Cars are freedom."}`)
	f.send(alice, `{"type":"phaseChange","phase":"crossForQuestion"}`)
	f.nextEvent()

	turn := bot.last()
	assert.Equal(t, debate.PhaseCrossForQuestion, turn.Phase)
	assert.Equal(t, "Ban cars", turn.Topic)
	assert.Equal(t, "Cars are freedom.", turn.History[debate.PhaseOpeningAgainst])
	assert.Equal(t, "The bot argues for openingFor.", turn.History[debate.PhaseOpeningFor])
}

func TestLateBotSpeechDropped(t *testing.T) {
	f := newFixture(t, debate.ModeDuel, Dependencies{})
	require.NoError(t, f.room.addBot())
	alice := f.attach(testClient("alice"))
	f.send(alice, `{"type":"ready","ready":true}`)
	f.tick(63)
	require.Equal(t, debate.PhaseOpeningAgainst, f.room.session.Phase())
	drain(t, alice)

	f.room.handle(botSpeechEvent{phase: debate.PhaseOpeningFor, text: "too late"})

	assert.Empty(t, ofType(drain(t, alice), TypeSpeechText))
	text, _ := f.room.session.Transcripts().Sealed(debate.PhaseOpeningFor, debate.StanceFor)
	assert.NotEqual(t, "too late", text)
}

func TestBotOnlyInDuels(t *testing.T) {
	f := newFixture(t, debate.ModeTeam, Dependencies{})
	err := f.room.addBot()
	require.Error(t, err)
	assert.Equal(t, "bot_duel_only", debate.Code(err))
}
