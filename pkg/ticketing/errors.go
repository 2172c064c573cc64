package ticketing

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the actor is not authorized for
	// the requested scope.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState is returned when an operation is attempted on a ticket
	// whose state does not allow it.
	ErrInvalidState = errors.New("invalid ticket state")

	// ErrUserNotFound is returned when a user reference cannot be resolved
	// to a guild member.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotFound is returned by store implementations when a row does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrCooldown is returned when a user is creating tickets faster than
	// the per-user limit allows.
	ErrCooldown = errors.New("ticket creation on cooldown")

	// ErrTranscriptIncomplete is returned when the channel history fetch was
	// interrupted. A partial transcript is never returned as complete.
	ErrTranscriptIncomplete = errors.New("transcript incomplete")
)

// ValidationError reports malformed template or form input. It is reported
// to the initiating actor and never retried.
type ValidationError struct {
	// Field is the offending field, if any.
	Field string

	// Reason is a human readable description of the problem.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ChannelOperationError reports a failed call against the external channel
// API. During creation it triggers rollback of the just-inserted ticket row;
// during close it is surfaced for manual retry while the logical close
// stands.
type ChannelOperationError struct {
	// Op is the channel operation that failed.
	Op string

	// ChannelID is the channel the operation targeted, if known.
	ChannelID string

	// Err is the underlying failure.
	Err error
}

func (e *ChannelOperationError) Error() string {
	if e.ChannelID == "" {
		return fmt.Sprintf("channel operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("channel operation %s on %s failed: %v", e.Op, e.ChannelID, e.Err)
}

func (e *ChannelOperationError) Unwrap() error {
	return e.Err
}

func newChannelError(op, channelID string, err error) *ChannelOperationError {
	return &ChannelOperationError{Op: op, ChannelID: channelID, Err: err}
}
