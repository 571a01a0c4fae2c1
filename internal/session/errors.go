package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a user action starts while another is still
	// in flight.
	ErrBusy = errors.New("another group action is in progress")

	// ErrNoGroup is returned when the operation names a group that is not
	// the current one, or there is no current group.
	ErrNoGroup = errors.New("no active group")

	ErrNotOwner          = errors.New("only the group owner can do this")
	ErrNotMember         = errors.New("user is not a member of the group")
	ErrAlreadyMember     = errors.New("user is already a member of the group")
	ErrNotLocal          = errors.New("operation requires a local group")
	ErrInvalidTransition = errors.New("invalid group state transition")
	ErrNotAllReady       = errors.New("not every member is ready")
)

// ValidationError rejects user input before any network call is made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var errRequired = errors.New("required")

func invalidTransition(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
}
