package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"debatehub/models"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// extractJSONObject pulls the JSON object out of judge output. The judge
// usually wraps it in a ```json fence surrounded by prose, but fences may
// be missing or unterminated.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); strings.Contains(inner, "{") {
			text = inner
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in judge output")
	}
	return text[start : end+1], nil
}

// DecodeVerdict parses judge output into a Verdict.
func DecodeVerdict(text string) (*models.Verdict, error) {
	obj, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var v models.Verdict
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return nil, fmt.Errorf("failed to decode verdict: %w", err)
	}
	v.Verdict.Winner = normalizeWinner(v.Verdict.Winner, v.Total)
	return &v, nil
}

func normalizeWinner(winner string, total models.Totals) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "for":
		return "For"
	case "against":
		return "Against"
	case "draw", "tie":
		return "Draw"
	case "none":
		return "None"
	}
	switch {
	case total.For > total.Against:
		return "For"
	case total.Against > total.For:
		return "Against"
	}
	return "Draw"
}

// FailedVerdict is the terminal verdict used when the judge cannot produce
// one. Every score is zero.
func FailedVerdict(reason string) *models.Verdict {
	return &models.Verdict{
		Verdict: models.VerdictSummary{
			Winner: "None",
			Reason: "Judging failed: " + reason,
		},
		Failed:        true,
		FailureReason: reason,
	}
}

// EncodeVerdict renders v as JSON text, the form stored and sent to clients.
func EncodeVerdict(v *models.Verdict) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode verdict: %w", err)
	}
	return string(b), nil
}
