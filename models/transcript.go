package models

import (
	"time"
)

// DebateTranscript is one side's submission for judging.
type DebateTranscript struct {
	RoomID      string            `bson:"roomId" json:"roomId"`
	Role        string            `bson:"role" json:"role"`
	UserID      string            `bson:"userId,omitempty" json:"userId,omitempty"`
	Topic       string            `bson:"topic,omitempty" json:"topic,omitempty"`
	Transcripts map[string]string `bson:"transcripts" json:"transcripts"`
	CreatedAt   time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Judgment result states.
const (
	ResultJudging = "judging"
	ResultJudged  = "judged"
)

// DebateResult caches the verdict of one room. Result holds the verdict
// encoded as JSON text.
type DebateResult struct {
	RoomID    string    `bson:"roomId" json:"roomId"`
	Status    string    `bson:"status" json:"status"`
	Result    string    `bson:"result,omitempty" json:"result,omitempty"`
	Failed    bool      `bson:"failed,omitempty" json:"failed,omitempty"`
	ClaimedAt time.Time `bson:"claimedAt,omitempty" json:"claimedAt,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
