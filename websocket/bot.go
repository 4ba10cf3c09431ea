package websocket

import (
	"context"

	"debatehub/internal/debate"
	"debatehub/services"
)

const botDisplayName = "Debate Bot"

// addBot seats the synthetic opponent. It is always ready and takes
// whichever stance the human leaves free when the debate starts.
func (r *Room) addBot() error {
	if r.session.Mode != debate.ModeDuel {
		return &debate.Error{Kind: debate.ErrValidation, Code: "bot_duel_only", Message: "bot opponents are only available in duels"}
	}
	r.botID = "bot:" + r.id
	_, _, err := r.session.AddParticipant(debate.Participant{
		UserID:      r.botID,
		DisplayName: botDisplayName,
		Bot:         true,
		JoinedAt:    r.now(),
	})
	return err
}

// maybeBotSpeak asks the bot for its speech when it holds the floor. The
// reply comes back through the room queue.
func (r *Room) maybeBotSpeak(phase debate.Phase) {
	if r.botID == "" || r.bot == nil {
		return
	}
	stance, ok := r.session.StanceOf(r.botID)
	if !ok || !debate.WhoseTurn(phase, stance) {
		return
	}

	turn := services.BotTurn{
		RoomID:  r.id,
		Topic:   r.session.Topic(),
		Stance:  stance,
		Phase:   phase,
		History: make(map[debate.Phase]string),
	}
	for _, p := range debate.SpeakingPhases {
		if !p.Before(phase) {
			break
		}
		acting, _ := debate.ActingStance(p)
		if text, ok := r.session.Transcripts().Sealed(p, acting); ok {
			turn.History[p] = text
		}
	}

	// The bot must finish inside its own phase.
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.Durations.For(phase))
	go func() {
		defer cancel()
		text, err := r.bot.Speak(ctx, turn)
		if err != nil {
			r.logger.Warn("bot failed to speak", "phase", phase, "error", err)
			return
		}
		r.post(botSpeechEvent{phase: phase, text: text})
	}()
}

// onBotSpeech records the bot's speech if its phase is still open.
func (r *Room) onBotSpeech(phase debate.Phase, text string) {
	if r.session.Phase() != phase {
		r.logger.Debug("bot speech arrived after its phase", "phase", phase)
		return
	}
	stance, ok := r.session.StanceOf(r.botID)
	if !ok {
		return
	}
	if err := r.session.Transcripts().Append(phase, stance, text); err != nil {
		r.logger.Debug("bot speech rejected", "phase", phase, "reason", debate.Code(err))
		return
	}
	r.broadcast(Outbound{Type: TypeSpeechText, UserID: r.botID, Username: botDisplayName, Phase: phase, Role: stance, SpeechText: text})
}
