package roomsync

import (
	"errors"
	"fmt"
)

var (
	errMissingClient = errors.New("game client is required")

	// ErrMissingIdentity indicates an action was invoked before an identity
	// was resolved; the action performs no network call.
	ErrMissingIdentity = errors.New("roomsync: identity is required")
	// ErrMissingRoom indicates an action was invoked without a room id.
	ErrMissingRoom = errors.New("roomsync: room id is required")
	// ErrActionInFlight indicates the action's exclusive lock is already held.
	ErrActionInFlight = errors.New("roomsync: action already in flight")
	// ErrSessionClosed indicates the session was stopped before the call.
	ErrSessionClosed = errors.New("roomsync: session is closed")
)

const (
	opSessionNew   = "roomsync.session.new"
	opSessionStart = "roomsync.session.start"
	opRefresh      = "roomsync.refresh"
)

// SessionError carries a dotted operation.reason code alongside its cause so
// callers can branch on the failure class without string matching.
type SessionError struct {
	code string
	err  error
}

func (e *SessionError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SessionError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason identifier.
func (e *SessionError) Code() string {
	return e.code
}

func newSessionError(operation, reason string, cause error) error {
	return &SessionError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
