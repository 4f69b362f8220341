// Package engine implements the seat reservation core: initiating,
// confirming and cancelling bookings under per-show mutual exclusion.
// Every seat and booking transition is a conditional store update, so
// operations either complete fully or leave no partial state behind.
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. The HTTP layer maps
// each of these onto a status code and error_code; anything else is
// surfaced as an internal error.
var (
	// ErrValidation marks malformed input such as an empty or
	// duplicated seat selection.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound marks an unknown show, seat or booking.
	ErrNotFound = errors.New("not found")

	// ErrSeatUnavailable marks a selection containing seats that are
	// booked or freshly locked. The concrete error is always a
	// *SeatUnavailableError carrying the offending seat IDs.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrConflict marks a lost race on a conditional update, or an
	// operation against a show that is not open for booking. Callers
	// may retry once with a fresh selection.
	ErrConflict = errors.New("conflict")

	// ErrExpired marks a confirm attempt after the booking's seat
	// hold lapsed. The reaper owns the EXPIRED transition; the engine
	// only reports it.
	ErrExpired = errors.New("booking expired")

	// ErrAlreadyConfirmed marks a confirm attempt on a booking that
	// was confirmed before.
	ErrAlreadyConfirmed = errors.New("booking already confirmed")

	// ErrTerminal marks an operation on a cancelled or expired
	// booking.
	ErrTerminal = errors.New("booking in terminal state")

	// ErrNotCancellable marks a cancel attempt inside the grace
	// window before showtime, or on a booking that cannot be
	// cancelled at all.
	ErrNotCancellable = errors.New("booking not cancellable")

	// ErrTimeout marks a caller deadline that elapsed while waiting
	// for the show mutex or a store call. No partial effects remain.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnauthorized marks a write attempted by a user who does not
	// own the booking.
	ErrUnauthorized = errors.New("not booking owner")

	// ErrInvariantViolated marks torn state, such as a seat that is
	// not held by its booking at confirm time. It is never retried
	// and always logged with full context.
	ErrInvariantViolated = errors.New("invariant violated")
)

// SeatUnavailableError reports which requested seats could not be
// locked. It unwraps to ErrSeatUnavailable so callers can classify it
// with errors.Is and still reach the IDs with errors.As.
type SeatUnavailableError struct {
	FailedSeatIDs []uint64
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("%d seat(s) unavailable: %v", len(e.FailedSeatIDs), e.FailedSeatIDs)
}

func (e *SeatUnavailableError) Unwrap() error { return ErrSeatUnavailable }
