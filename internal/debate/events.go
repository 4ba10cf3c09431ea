package debate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Spectator event types that do not come from a room broadcast.
const (
	EventPresence = "presence"
	EventReaction = "reaction"
)

// Event is one entry of a debate's spectator stream.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// ReactionPayload is a spectator reaction. It never reaches the session.
type ReactionPayload struct {
	Reaction      string `json:"reaction"`
	SpectatorHash string `json:"spectatorHash"`
	Timestamp     int64  `json:"timestamp"`
}

// PresencePayload carries the number of spectators connected to this
// instance.
type PresencePayload struct {
	Connected int `json:"connected"`
}

// ClientMessage is a frame sent by a spectator.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent encodes payload right away so later mutations of it are not
// observed.
func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payloadBytes,
		Timestamp: now.Unix(),
	}, nil
}

// MarshalEvent marshals an event to the JSON string stored in the stream.
func MarshalEvent(event *Event) (string, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func UnmarshalEvent(data string) (*Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	return &event, nil
}

// StreamKey is the Redis stream holding a debate's spectator events.
func StreamKey(debateID string) string {
	return fmt.Sprintf("debate:%s:events", debateID)
}
