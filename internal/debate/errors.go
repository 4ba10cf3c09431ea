package debate

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these so callers can
// branch with errors.Is without knowing the specific code.
var (
	ErrValidation      = errors.New("validation error")
	ErrOutOfOrder      = errors.New("out of order")
	ErrTransport       = errors.New("transport error")
	ErrExternalService = errors.New("external service error")
)

// Error is a classified engine error. Code is stable and sent to clients.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func outOfOrderError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrOutOfOrder, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Well known errors.
var (
	ErrStanceTaken      = &Error{Kind: ErrValidation, Code: "stance_taken", Message: "stance is already held by the opposing side"}
	ErrInvalidStance    = &Error{Kind: ErrValidation, Code: "invalid_stance", Message: "stance must be \"for\" or \"against\""}
	ErrNotInSetup       = &Error{Kind: ErrValidation, Code: "not_in_setup", Message: "only allowed before the debate starts"}
	ErrEmptyTopic       = &Error{Kind: ErrValidation, Code: "empty_topic", Message: "topic must not be empty"}
	ErrEmptyUserID      = &Error{Kind: ErrValidation, Code: "empty_user", Message: "user id must not be empty"}
	ErrUnknownUser      = &Error{Kind: ErrValidation, Code: "unknown_participant", Message: "participant is not part of this session"}
	ErrRoomFull         = &Error{Kind: ErrValidation, Code: "room_full", Message: "both sides are already occupied"}
	ErrTranscriptSealed = &Error{Kind: ErrOutOfOrder, Code: "transcript_sealed", Message: "transcript for this phase is sealed"}
	ErrNotYourTurn      = &Error{Kind: ErrOutOfOrder, Code: "not_your_turn", Message: "the other side holds the floor"}
	ErrVerdictSet       = &Error{Kind: ErrOutOfOrder, Code: "verdict_set", Message: "verdict already recorded"}
	ErrCountdownPending = &Error{Kind: ErrOutOfOrder, Code: "countdown_pending", Message: "the debate starts when the countdown ends"}
	ErrPhaseNotOver     = &Error{Kind: ErrOutOfOrder, Code: "phase_not_over", Message: "only the side holding the floor can end the phase early"}
	ErrDebateInProgress = &Error{Kind: ErrValidation, Code: "debate_in_progress", Message: "the debate has not finished yet"}
	ErrRoleMismatch     = &Error{Kind: ErrValidation, Code: "role_mismatch", Message: "role does not match the caller's stance"}
)

// Code returns the client facing code of err, or "internal" when err is not
// an engine error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
