package models

// ScoreDetail is the judge's score for one side in one section.
type ScoreDetail struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// SectionScores pairs both sides' scores for one section.
type SectionScores struct {
	For     ScoreDetail `json:"for"`
	Against ScoreDetail `json:"against"`
}

type Totals struct {
	For     float64 `json:"for"`
	Against float64 `json:"against"`
}

type VerdictSummary struct {
	Winner           string `json:"winner"`
	Reason           string `json:"reason"`
	Congratulations  string `json:"congratulations"`
	OpponentAnalysis string `json:"opponent_analysis"`
}

// Verdict is the structured judgment of a debate. Failed verdicts carry
// zero scores and the reason judging could not complete.
type Verdict struct {
	OpeningStatement          SectionScores  `json:"opening_statement"`
	CrossExaminationQuestions SectionScores  `json:"cross_examination_questions"`
	CrossExaminationAnswers   SectionScores  `json:"cross_examination_answers"`
	Closing                   SectionScores  `json:"closing"`
	Total                     Totals         `json:"total"`
	Verdict                   VerdictSummary `json:"verdict"`
	Failed                    bool           `json:"failed,omitempty"`
	FailureReason             string         `json:"failureReason,omitempty"`
}
