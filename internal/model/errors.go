package model

import (
	"errors"
	"fmt"
)

// Business errors returned by the reservation aggregate and its callers.
// These are expected outcomes the buyer-facing flow must handle, not faults.
var (
	// ErrReservationExpired is returned when a confirm arrives after the
	// hold deadline has passed.
	ErrReservationExpired = errors.New("reservation hold expired")

	// ErrConcurrencyConflict is returned when a write supplies a stale
	// version; the caller must re-read and retry.
	ErrConcurrencyConflict = errors.New("reservation version conflict")

	// ErrReservationNotExpired is returned when Expire is attempted while
	// the hold deadline is still in the future.
	ErrReservationNotExpired = errors.New("reservation deadline not reached")

	// ErrInvalidRule marks a pricing rule that fails construction-time
	// validation.
	ErrInvalidRule = errors.New("invalid pricing rule")
)

// InvalidTransitionError names the current and requested states of a
// rejected reservation transition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
