package services

import (
	"testing"

	"debatehub/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVerdict(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		winner string
	}{
		{"fenced with prose", sampleVerdict, "For"},
		{"bare object", `{"total": {"for": 10, "against": 12}, "verdict": {"winner": "against"}}`, "Against"},
		{"unterminated fence", "```json\n{\"total\": {\"for\": 3, \"against\": 3}, \"verdict\": {\"winner\": \"tie\"}}", "Draw"},
		{"winner from totals", `{"total": {"for": 25, "against": 12}, "verdict": {"winner": ""}}`, "For"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeVerdict(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.winner, v.Verdict.Winner)
		})
	}
}

func TestDecodeVerdictScores(t *testing.T) {
	v, err := DecodeVerdict(sampleVerdict)
	require.NoError(t, err)
	assert.Equal(t, 8.0, v.OpeningStatement.For.Score)
	assert.Equal(t, "evasive", v.CrossExaminationAnswers.Against.Reason)
	assert.Equal(t, 30.0, v.Total.For)
	assert.Equal(t, "work on answers", v.Verdict.OpponentAnalysis)
	assert.False(t, v.Failed)
}

func TestDecodeVerdictRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "no json here", "```json\n{not json}\n```"} {
		_, err := DecodeVerdict(input)
		assert.Error(t, err, input)
	}
}

func TestEncodeVerdictRoundTripsFailure(t *testing.T) {
	text, err := EncodeVerdict(FailedVerdict("timeout"))
	require.NoError(t, err)
	v, err := DecodeVerdict(text)
	require.NoError(t, err)
	assert.True(t, v.Failed)
	assert.Equal(t, "timeout", v.FailureReason)
}

func TestFormatTranscriptOrdersPhases(t *testing.T) {
	out := FormatTranscript(map[debate.Phase]string{
		debate.PhaseClosingAgainst: "bye",
		debate.PhaseOpeningFor:     "hello",
	})
	assert.Equal(t, "For (openingFor): hello\nAgainst (closingAgainst): bye\n", out)
}
