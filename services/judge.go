package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"debatehub/internal/debate"

	"google.golang.org/genai"
)

// JudgeRequest is everything the judge sees: the topic and the merged
// phase -> text transcript of both sides.
type JudgeRequest struct {
	RoomID      string
	Topic       string
	Transcripts map[debate.Phase]string
}

// Judge scores a finished debate. Implementations return the raw judge
// output; decoding happens in the judgment service.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (string, error)
}

const defaultGeminiModel = "gemini-2.5-flash"

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

func geminiModelName(model string) string {
	if model == "" {
		return defaultGeminiModel
	}
	return model
}

// GeminiJudge asks a Gemini model for a verdict. The model is asked for
// JSON at a low temperature.
type GeminiJudge struct {
	models *genai.Models
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiJudge(ctx context.Context, apiKey, model string) (*GeminiJudge, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiJudge{
		models: client.Models,
		model:  geminiModelName(model),
		config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.2),
			ResponseMIMEType: "application/json",
		},
	}, nil
}

func (g *GeminiJudge) Judge(ctx context.Context, req JudgeRequest) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buildJudgePrompt(req)), g.config)
	if err != nil {
		return "", fmt.Errorf("judge request to %s: %w", g.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty judge response")
	}
	return text, nil
}

// FormatTranscript renders the merged transcript in phase order, one line
// per phase.
func FormatTranscript(merged map[debate.Phase]string) string {
	var b strings.Builder
	for _, phase := range debate.SpeakingPhases {
		text, ok := merged[phase]
		if !ok || text == "" {
			continue
		}
		stance, _ := debate.ActingStance(phase)
		role := "For"
		if stance == debate.StanceAgainst {
			role = "Against"
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", role, phase, text)
	}
	return b.String()
}

func buildJudgePrompt(req JudgeRequest) string {
	topic := req.Topic
	if topic == "" {
		topic = "User vs User Debate"
	}
	return fmt.Sprintf(
		`Act as a professional debate judge. Analyze the following human-vs-human debate on the topic %q and provide scores in STRICT JSON format:

Judgment Criteria:
1. Opening Statement (10 points): clarity of position, quality of reasoning, expression.
2. Cross Examination Questions (10 points): relevance to core issues, depth, originality.
3. Answers to Cross Examination (10 points): directness, logical coherence, effectiveness.
4. Closing Statements (10 points): summary of key points, reiteration of stance, persuasiveness.

A phase whose text is "No response" means the speaker stayed silent; score it 0.

Required Output Format:
{
  "opening_statement": {"for": {"score": X, "reason": "text"}, "against": {"score": Y, "reason": "text"}},
  "cross_examination_questions": {"for": {"score": X, "reason": "text"}, "against": {"score": Y, "reason": "text"}},
  "cross_examination_answers": {"for": {"score": X, "reason": "text"}, "against": {"score": Y, "reason": "text"}},
  "closing": {"for": {"score": X, "reason": "text"}, "against": {"score": Y, "reason": "text"}},
  "total": {"for": X, "against": Y},
  "verdict": {"winner": "For/Against", "reason": "text", "congratulations": "text", "opponent_analysis": "text"}
}

Debate Transcript:
%s

Provide ONLY the JSON output without any additional text.`, topic, FormatTranscript(req.Transcripts))
}
