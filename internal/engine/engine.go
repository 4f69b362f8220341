package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// rollbackTimeout bounds the cleanup work done when an initiate call
// fails midway. Cleanup runs on a context detached from the caller so
// it completes even after the caller's deadline elapsed.
const rollbackTimeout = 10 * time.Second

// ShowStore is the slice of the show catalog the engine needs: it
// resolves a show's schedule and state for booking-window checks.
// *repository.ShowRepo satisfies it.
type ShowStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Show, error)
}

// Refunder accepts refund work for bookings whose payment was
// captured but whose seats are being given back. Implementations must
// not block; the engine calls it after releasing the show mutex.
type Refunder interface {
	EnqueueRefund(bookingID uint64, paymentRef string, amountCents uint32)
}

// Events receives booking lifecycle notifications after the
// transition has committed and the show mutex is released.
type Events interface {
	BookingConfirmed(b *model.Booking)
	BookingCancelled(b *model.Booking, refunded bool)
}

// BookingResult is returned by a successful InitiateBooking.
type BookingResult struct {
	BookingID        uint64
	ShowID           uint64
	SeatIDs          []uint64 // show_seat IDs now locked for the booking
	TotalAmountCents uint32
	ExpiresAt        time.Time
}

// Config carries the engine's tuning knobs. Zero values fall back to
// the defaults used across the service.
type Config struct {
	LockDuration time.Duration // how long a pending booking holds its seats
	CancelGrace  time.Duration // minimum time before showtime for refundable cancels
}

// Engine coordinates all seat and booking state transitions. Every
// mutation of a (show, seat) pair happens under that show's mutex,
// with the store's conditional updates as the second line of defense
// against writers in other processes.
type Engine struct {
	seats    repository.SeatStore
	bookings repository.BookingStore
	shows    ShowStore
	locks    *lock.Registry
	logger   *zap.Logger

	lockDuration time.Duration
	cancelGrace  time.Duration

	refunder Refunder
	events   Events
}

// New builds an Engine. The refunder and event sink are optional and
// attached afterwards with SetRefunder / SetEvents, which breaks the
// construction cycle with the payment coordinator.
func New(seats repository.SeatStore, bookings repository.BookingStore, shows ShowStore, locks *lock.Registry, logger *zap.Logger, cfg Config) *Engine {
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 15 * time.Minute
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = 30 * time.Minute
	}
	return &Engine{
		seats:        seats,
		bookings:     bookings,
		shows:        shows,
		locks:        locks,
		logger:       logger,
		lockDuration: cfg.LockDuration,
		cancelGrace:  cfg.CancelGrace,
	}
}

// SetRefunder attaches the refund sink. Call during startup, before
// the engine serves requests.
func (e *Engine) SetRefunder(r Refunder) { e.refunder = r }

// SetEvents attaches the lifecycle event sink. Call during startup,
// before the engine serves requests.
func (e *Engine) SetEvents(ev Events) { e.events = ev }

// LockDuration reports the default seat hold window.
func (e *Engine) LockDuration() time.Duration { return e.lockDuration }

// InitiateBooking places a soft lock on the requested seats and
// creates a PENDING booking that holds them until expiry. The hold
// lasts lockFor, or the engine default when lockFor <= 0. All-or-
// nothing: when any seat is unavailable, nothing is locked and the
// returned *SeatUnavailableError lists the seats at fault.
func (e *Engine) InitiateBooking(ctx context.Context, userID, showID uint64, seatIDs []uint64, lockFor time.Duration) (*BookingResult, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrValidation)
	}
	if hasDuplicates(seatIDs) {
		return nil, fmt.Errorf("%w: duplicate seat ids", ErrValidation)
	}
	if lockFor <= 0 {
		lockFor = e.lockDuration
	}

	release, err := e.locks.Acquire(ctx, showID)
	if err != nil {
		return nil, asTimeout(err)
	}
	defer release()

	now := time.Now().UTC()

	show, err := e.shows.GetByID(ctx, showID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("show %d: %w", showID, ErrNotFound)
		}
		return nil, asTimeout(err)
	}
	if show.Status != model.ShowScheduled || !show.StartsAt.After(now) {
		return nil, fmt.Errorf("show %d is not open for booking: %w", showID, ErrConflict)
	}

	seats, err := e.seats.SeatsByIDs(ctx, showID, seatIDs)
	if err != nil {
		return nil, asTimeout(err)
	}
	if len(seats) != len(seatIDs) {
		return nil, fmt.Errorf("%d of %d requested seats unknown for show %d: %w",
			len(seatIDs)-len(seats), len(seatIDs), showID, ErrNotFound)
	}

	// Availability check is stale-lock aware: a LOCKED seat whose
	// hold lapsed counts as available and is reclaimed in place.
	var (
		failed []uint64
		total  uint32
	)
	for _, seat := range seats {
		if !seat.AvailableAt(now) {
			failed = append(failed, seat.ID)
			continue
		}
		total += seat.PriceCents
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		return nil, &SeatUnavailableError{FailedSeatIDs: failed}
	}

	expiresAt := now.Add(lockFor)
	booking := &model.Booking{
		UserID:           userID,
		ShowID:           showID,
		BookingStatus:    model.BookingPending,
		PaymentStatus:    model.PaymentPending,
		TotalAmountCents: total,
		ExpiresAt:        expiresAt,
	}
	for _, seat := range seats {
		booking.Seats = append(booking.Seats, model.BookingSeat{ShowSeatID: seat.ID, PriceCents: seat.PriceCents})
	}
	if err := e.bookings.Insert(ctx, booking); err != nil {
		return nil, asTimeout(err)
	}

	locked := make([]uint64, 0, len(seats))
	for _, seat := range seats {
		applied, err := e.seats.Lock(ctx, seat.ID, booking.ID, expiresAt, now)
		if err == nil && !applied {
			err = fmt.Errorf("seat %d changed state during booking: %w", seat.ID, ErrConflict)
		}
		if err != nil {
			e.rollbackInitiate(ctx, booking, locked)
			return nil, asTimeout(err)
		}
		locked = append(locked, seat.ID)
	}

	e.logger.Info("booking initiated",
		zap.Uint64("booking_id", booking.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("show_id", showID),
		zap.Int("seats", len(locked)),
		zap.Uint32("total_cents", total),
		zap.Time("expires_at", expiresAt))

	return &BookingResult{
		BookingID:        booking.ID,
		ShowID:           showID,
		SeatIDs:          locked,
		TotalAmountCents: total,
		ExpiresAt:        expiresAt,
	}, nil
}

// rollbackInitiate undoes a partially applied initiate: every seat
// locked so far goes back to AVAILABLE and the booking is parked in
// CANCELLED. Runs on a detached context so the cleanup survives the
// caller's deadline.
func (e *Engine) rollbackInitiate(ctx context.Context, b *model.Booking, locked []uint64) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	for _, seatID := range locked {
		if _, err := e.seats.ReleaseLock(rctx, seatID, b.ID); err != nil {
			e.logger.Error("rollback: releasing seat failed",
				zap.Uint64("show_seat_id", seatID),
				zap.Uint64("booking_id", b.ID),
				zap.Error(err))
		}
	}
	if _, err := e.bookings.UpdateStates(rctx, b.ID, model.BookingPending, model.BookingCancelled, "", nil); err != nil {
		e.logger.Error("rollback: cancelling booking failed",
			zap.Uint64("booking_id", b.ID),
			zap.Error(err))
	}
}

// ConfirmBooking finalizes payment on a PENDING booking: its seats go
// LOCKED -> BOOKED and the booking becomes CONFIRMED with the payment
// reference recorded. An expired hold is reported as ErrExpired
// without touching the row; the reaper owns that transition.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID uint64, paymentRef string) (*model.Booking, error) {
	b, release, err := e.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	b, err = e.confirmLocked(ctx, b, paymentRef)
	release()
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking confirmed",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("show_id", b.ShowID),
		zap.String("payment_ref", paymentRef))
	if e.events != nil {
		e.events.BookingConfirmed(b)
	}
	return b, nil
}

func (e *Engine) confirmLocked(ctx context.Context, b *model.Booking, paymentRef string) (*model.Booking, error) {
	switch b.BookingStatus {
	case model.BookingPending:
	case model.BookingConfirmed:
		return nil, fmt.Errorf("booking %d: %w", b.ID, ErrAlreadyConfirmed)
	default:
		return nil, fmt.Errorf("booking %d is %s: %w", b.ID, b.BookingStatus, ErrTerminal)
	}
	now := time.Now().UTC()
	if b.Expired(now) {
		return nil, fmt.Errorf("booking %d hold lapsed at %s: %w", b.ID, b.ExpiresAt.Format(time.RFC3339), ErrExpired)
	}
	for _, seat := range b.Seats {
		applied, err := e.seats.Book(ctx, seat.ShowSeatID, b.ID)
		if err != nil {
			return nil, asTimeout(err)
		}
		if !applied {
			e.logger.Error("seat not held by its booking at confirm",
				zap.Uint64("booking_id", b.ID),
				zap.Uint64("show_seat_id", seat.ShowSeatID))
			return nil, fmt.Errorf("seat %d not held by booking %d: %w", seat.ShowSeatID, b.ID, ErrInvariantViolated)
		}
	}
	ref := paymentRef
	applied, err := e.bookings.UpdateStates(ctx, b.ID, model.BookingPending, model.BookingConfirmed, model.PaymentCompleted, &ref)
	if err != nil {
		return nil, asTimeout(err)
	}
	if !applied {
		return nil, fmt.Errorf("booking %d changed state during confirm: %w", b.ID, ErrConflict)
	}
	b.BookingStatus = model.BookingConfirmed
	b.PaymentStatus = model.PaymentCompleted
	b.PaymentRef = &ref
	b.UpdatedAt = now
	return b, nil
}

// CancelBooking releases a booking's seats on behalf of its owner.
// PENDING bookings cancel unconditionally. CONFIRMED bookings cancel
// only while showtime is further away than the grace window; their
// payment is marked REFUNDED and a refund is handed to the refunder.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, release, err := e.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	b, refunded, err := e.cancelLocked(ctx, b, userID)
	release()
	if err != nil {
		return nil, err
	}

	e.logger.Info("booking cancelled",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("show_id", b.ShowID),
		zap.Bool("refunded", refunded))
	if refunded && e.refunder != nil && b.PaymentRef != nil {
		e.refunder.EnqueueRefund(b.ID, *b.PaymentRef, b.TotalAmountCents)
	}
	if e.events != nil {
		e.events.BookingCancelled(b, refunded)
	}
	return b, nil
}

func (e *Engine) cancelLocked(ctx context.Context, b *model.Booking, userID uint64) (*model.Booking, bool, error) {
	if b.UserID != userID {
		return nil, false, fmt.Errorf("booking %d does not belong to user %d: %w", b.ID, userID, ErrUnauthorized)
	}
	now := time.Now().UTC()

	switch b.BookingStatus {
	case model.BookingPending:
		// Release is conditional per seat: a hold that already
		// lapsed and was reclaimed by someone else is left alone.
		for _, seat := range b.Seats {
			if _, err := e.seats.ReleaseLock(ctx, seat.ShowSeatID, b.ID); err != nil {
				return nil, false, asTimeout(err)
			}
		}
		applied, err := e.bookings.UpdateStates(ctx, b.ID, model.BookingPending, model.BookingCancelled, "", nil)
		if err != nil {
			return nil, false, asTimeout(err)
		}
		if !applied {
			return nil, false, fmt.Errorf("booking %d changed state during cancel: %w", b.ID, ErrConflict)
		}
		b.BookingStatus = model.BookingCancelled
		b.UpdatedAt = now
		return b, false, nil

	case model.BookingConfirmed:
		show, err := e.shows.GetByID(ctx, b.ShowID)
		if err != nil {
			return nil, false, asTimeout(err)
		}
		if !show.StartsAt.After(now.Add(e.cancelGrace)) {
			return nil, false, fmt.Errorf("booking %d is within %s of showtime: %w", b.ID, e.cancelGrace, ErrNotCancellable)
		}
		for _, seat := range b.Seats {
			if _, err := e.seats.ReleaseBooked(ctx, seat.ShowSeatID, b.ID); err != nil {
				return nil, false, asTimeout(err)
			}
		}
		applied, err := e.bookings.UpdateStates(ctx, b.ID, model.BookingConfirmed, model.BookingCancelled, model.PaymentRefunded, nil)
		if err != nil {
			return nil, false, asTimeout(err)
		}
		if !applied {
			return nil, false, fmt.Errorf("booking %d changed state during cancel: %w", b.ID, ErrConflict)
		}
		b.BookingStatus = model.BookingCancelled
		b.PaymentStatus = model.PaymentRefunded
		b.UpdatedAt = now
		return b, true, nil

	default:
		return nil, false, fmt.Errorf("booking %d is %s: %w", b.ID, b.BookingStatus, ErrNotCancellable)
	}
}

// lockBooking loads the booking, acquires its show's mutex and
// reloads the booking under it, so callers always act on state that
// cannot move underneath them.
func (e *Engine) lockBooking(ctx context.Context, bookingID uint64) (*model.Booking, func(), error) {
	b, err := e.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, notFoundOrTimeout(bookingID, err)
	}
	release, err := e.locks.Acquire(ctx, b.ShowID)
	if err != nil {
		return nil, nil, asTimeout(err)
	}
	b, err = e.bookings.Get(ctx, bookingID)
	if err != nil {
		release()
		return nil, nil, notFoundOrTimeout(bookingID, err)
	}
	return b, release, nil
}

// notFoundOrTimeout classifies a booking read failure.
func notFoundOrTimeout(bookingID uint64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return asTimeout(err)
}

// asTimeout folds context expiry into ErrTimeout so callers see one
// uniform kind for "deadline elapsed, nothing happened". Other errors
// pass through unchanged.
func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// hasDuplicates reports whether ids contains a repeated value.
func hasDuplicates(ids []uint64) bool {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
