package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"debatehub/internal/debate"

	"google.golang.org/genai"
)

// BotTurn is what the synthetic opponent knows when it takes the floor.
type BotTurn struct {
	RoomID string
	Topic  string
	Stance debate.Stance
	Phase  debate.Phase
	// History holds the sealed text of every earlier phase.
	History  map[debate.Phase]string
	MaxWords int
}

// GeminiBot speaks for the bot side of a duel.
type GeminiBot struct {
	models *genai.Models
	model  string
	level  string
	config *genai.GenerateContentConfig
}

func NewGeminiBot(ctx context.Context, apiKey, model, level string) (*GeminiBot, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiBot{
		models: client.Models,
		model:  geminiModelName(model),
		level:  level,
		config: &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.9)},
	}, nil
}

func (b *GeminiBot) Speak(ctx context.Context, turn BotTurn) (string, error) {
	resp, err := b.models.GenerateContent(ctx, b.model, genai.Text(buildBotPrompt(b.level, turn)), b.config)
	if err != nil {
		return "", fmt.Errorf("bot request to %s: %w", b.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty bot response")
	}
	return text, nil
}

// lastOpponentText returns the most recent thing the human side said.
func lastOpponentText(turn BotTurn) string {
	for i := turn.Phase.Index() - 1; i >= 0; i-- {
		phase := debate.Sequence[i]
		acting, ok := debate.ActingStance(phase)
		if !ok || acting == turn.Stance {
			continue
		}
		if text := turn.History[phase]; text != "" && text != debate.NoResponse {
			return text
		}
	}
	return ""
}

// inferOpponentStyle guesses the opponent's debating style from their
// latest words.
func inferOpponentStyle(message string) string {
	message = strings.ToLower(message)
	styles := []struct {
		name  string
		words []string
	}{
		{"Aggressive", []string{"ridiculous", "absurd", "nonsense", "prove it", "wrong"}},
		{"Logical", []string{"evidence", "data", "logic", "reason", "study"}},
		{"Emotional", []string{"feel", "heart", "believe", "hope", "fear"}},
		{"Confident", []string{"obvious", "clearly", "definitely", "certain"}},
	}
	best, bestScore := "Neutral", 0
	for _, s := range styles {
		score := 0
		for _, w := range s.words {
			if strings.Contains(message, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s.name, score
		}
	}
	return best
}

func levelInstructions(level string) string {
	switch strings.ToLower(level) {
	case "easy":
		return "Use simple, accessible language with basic arguments suitable for beginners."
	case "hard":
		return "Employ complex, evidence-based arguments with precise details and in-depth reasoning."
	case "expert":
		return "Craft highly sophisticated, strategic arguments with layered reasoning and authoritative evidence."
	}
	return "Use clear, moderately complex language with well-structured reasoning and supporting details."
}

func phaseInstructions(turn BotTurn) string {
	tt, _ := debate.TurnTypeOf(turn.Phase)
	switch {
	case turn.Phase == debate.PhaseOpeningFor || turn.Phase == debate.PhaseOpeningAgainst:
		return "This is the Opening Statement phase. Introduce the topic, clearly state your stance, and outline the key points supporting your position."
	case tt == debate.TurnQuestion:
		return "This is the Cross Examination phase. Ask your opponent one pointed question that exposes a weakness in their position."
	case tt == debate.TurnAnswer:
		return "This is the Cross Examination phase. Answer your opponent's question directly and defend your stance."
	}
	return "This is the Closing Statement phase. Summarize the key points of the debate, reinforce your stance and conclude persuasively."
}

func buildBotPrompt(level string, turn BotTurn) string {
	topic := turn.Topic
	if topic == "" {
		topic = "an open topic of your choice"
	}
	maxWords := turn.MaxWords
	if maxWords <= 0 {
		maxWords = 120
	}
	opponent := lastOpponentText(turn)
	if opponent == "" {
		opponent = "Your opponent has not said anything yet."
	}
	return fmt.Sprintf(
		`You are a debate bot arguing %s the topic %q.
- Level Instructions: %s
- Opponent Style: %s. Adapt your tone to it.
%s
Opponent's latest point: %q
Transcript so far:
%s
Provide only your own argument without simulating your opponent. Limit your response to %d words.`,
		turn.Stance, topic,
		levelInstructions(level),
		inferOpponentStyle(opponent),
		phaseInstructions(turn),
		opponent,
		FormatTranscript(turn.History),
		maxWords,
	)
}
