package room

import "errors"

// RuleError is a user-caused rejection. Its message is the reason string sent
// back to the client that asked.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string {
	return e.Reason
}

var (
	ErrNoSuchUser     = &RuleError{Reason: "no such a user"}
	ErrNoSuchRoom     = &RuleError{Reason: "no such a room"}
	ErrAlreadyStarted = &RuleError{Reason: "already started"}
	ErrObserver       = &RuleError{Reason: "observer can only watch"}
	ErrNotInRoom      = &RuleError{Reason: "not a user in this room"}
	ErrOutOfRange     = &RuleError{Reason: "click out of range"}
	ErrNotStarted     = &RuleError{Reason: "game not started"}
	ErrNotYourTurn    = &RuleError{Reason: "not your turn"}
)

var (
	// ErrInconsistentState means the room broke one of its own invariants.
	ErrInconsistentState = errors.New("room: inconsistent state")

	// ErrRoomClosed is returned by AddUser on a room the registry already
	// dropped; callers fetch a fresh room and retry.
	ErrRoomClosed = errors.New("room: closed")
)

// IsRuleError reports whether err is a user-facing rejection.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// Reason returns the reason string of a rule error, or "" for anything else.
func Reason(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
