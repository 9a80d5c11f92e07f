package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: concurrent update or duplicate")
	ErrRateLimited  = errors.New("too many requests")
	ErrBadRequest   = errors.New("bad request")
)

// Lifecycle-specific errors surfaced by the subscription store and the
// payment ledger. Callers branch on these to decide retry vs. skip.
var (
	ErrInvalidState   = errors.New("invalid state for requested operation")
	ErrAlreadyMatched = errors.New("payment event already matched")
	ErrAmountMismatch = errors.New("payment amount does not match subscription")
	ErrNotPending     = errors.New("subscription is not pending payment")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
