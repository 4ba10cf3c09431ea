package websocket

import (
	"encoding/json"
	"fmt"

	"debatehub/internal/debate"
)

// Inbound message types.
const (
	TypeJoin           = "join"
	TypeTopicChange    = "topicChange"
	TypeRoleSelection  = "roleSelection"
	TypeReady          = "ready"
	TypePhaseChange    = "phaseChange"
	TypeSpeechText     = "speechText"
	TypeLiveTranscript = "liveTranscript"
	TypeOffer          = "offer"
	TypeAnswer         = "answer"
	TypeCandidate      = "candidate"
	TypeRequestOffer   = "requestOffer"
)

// Outbound-only message types.
const (
	TypeStateSync        = "stateSync"
	TypeRoomParticipants = "roomParticipants"
	TypeTeamMembers      = "teamMembers"
	TypeTeamStatus       = "teamStatus"
	TypeCountdownStart   = "countdownStart"
	TypeCountdownCancel  = "countdownCancel"
	TypeTurnStatus       = "turnStatus"
	TypeTimer            = "timer"
	TypeJudgment         = "judgment"
	TypeError            = "error"
)

// inbound is one decoded client message.
type inbound interface {
	messageType() string
}

type joinMessage struct {
	Username string `json:"username"`
}

type topicChangeMessage struct {
	Topic string `json:"topic"`
}

type roleSelectionMessage struct {
	Role debate.Stance `json:"role"`
}

type readyMessage struct {
	Ready *bool `json:"ready"`
}

type phaseChangeMessage struct {
	Phase debate.Phase `json:"phase"`
}

type speechTextMessage struct {
	SpeechText string       `json:"speechText"`
	Phase      debate.Phase `json:"phase"`
}

type liveTranscriptMessage struct {
	LiveTranscript string       `json:"liveTranscript"`
	Phase          debate.Phase `json:"phase"`
}

// signalMessage is an offer, answer or ICE candidate.
type signalMessage struct {
	kind         string
	TargetUserID string          `json:"targetUserId"`
	ConnectionID string          `json:"connectionId"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
	Candidate    json.RawMessage `json:"candidate"`
}

type requestOfferMessage struct {
	RequestID string `json:"requestId"`
}

func (joinMessage) messageType() string           { return TypeJoin }
func (topicChangeMessage) messageType() string    { return TypeTopicChange }
func (roleSelectionMessage) messageType() string  { return TypeRoleSelection }
func (readyMessage) messageType() string          { return TypeReady }
func (phaseChangeMessage) messageType() string    { return TypePhaseChange }
func (speechTextMessage) messageType() string     { return TypeSpeechText }
func (liveTranscriptMessage) messageType() string { return TypeLiveTranscript }
func (m signalMessage) messageType() string       { return m.kind }
func (requestOfferMessage) messageType() string   { return TypeRequestOffer }

func malformed(format string, args ...any) error {
	return &debate.Error{Kind: debate.ErrValidation, Code: "malformed_message", Message: fmt.Sprintf(format, args...)}
}

// decodeInbound parses a client frame. Unknown types are a validation error.
func decodeInbound(data []byte) (inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}

	var msg inbound
	switch envelope.Type {
	case TypeJoin:
		msg = &joinMessage{}
	case TypeTopicChange:
		msg = &topicChangeMessage{}
	case TypeRoleSelection:
		msg = &roleSelectionMessage{}
	case TypeReady:
		msg = &readyMessage{}
	case TypePhaseChange:
		msg = &phaseChangeMessage{}
	case TypeSpeechText:
		msg = &speechTextMessage{}
	case TypeLiveTranscript:
		msg = &liveTranscriptMessage{}
	case TypeOffer, TypeAnswer, TypeCandidate:
		msg = &signalMessage{kind: envelope.Type}
	case TypeRequestOffer:
		msg = &requestOfferMessage{}
	case "":
		return nil, malformed("missing message type")
	default:
		return nil, &debate.Error{Kind: debate.ErrValidation, Code: "unknown_type", Message: fmt.Sprintf("unknown message type %q", envelope.Type)}
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, malformed("invalid %s message: %v", envelope.Type, err)
	}
	return msg, nil
}

// ErrorBody is the payload of an error reply.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Outbound is every message the server sends to a debate connection. Room
// messages carry the full room state.
type Outbound struct {
	Type string `json:"type"`

	UserID         string          `json:"userId,omitempty"`
	Username       string          `json:"username,omitempty"`
	TeamID         string          `json:"teamId,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Phase          debate.Phase    `json:"phase,omitempty"`
	Role           debate.Stance   `json:"role,omitempty"`
	Ready          *bool           `json:"ready,omitempty"`
	SpeechText     string          `json:"speechText,omitempty"`
	LiveTranscript string          `json:"liveTranscript,omitempty"`
	CurrentTurn    debate.Stance   `json:"currentTurn,omitempty"`
	TurnType       debate.TurnType `json:"turnType,omitempty"`
	CanSpeak       *bool           `json:"canSpeak,omitempty"`
	IsMuted        *bool           `json:"isMuted,omitempty"`
	Countdown      int             `json:"countdown,omitempty"`

	Participants []debate.ParticipantView `json:"participants,omitempty"`
	Timer        *debate.TimerState       `json:"timer,omitempty"`
	Result       json.RawMessage          `json:"result,omitempty"`
	Error        *ErrorBody               `json:"error,omitempty"`

	// Signaling fields.
	ConnectionID     string          `json:"connectionId,omitempty"`
	FromConnectionID string          `json:"fromConnectionId,omitempty"`
	TargetUserID     string          `json:"targetUserId,omitempty"`
	RequestID        string          `json:"requestId,omitempty"`
	Offer            json.RawMessage `json:"offer,omitempty"`
	Answer           json.RawMessage `json:"answer,omitempty"`
	Candidate        json.RawMessage `json:"candidate,omitempty"`

	State *debate.Snapshot `json:"state,omitempty"`
}

func boolPtr(b bool) *bool { return &b }
