package repository

import (
    "context"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// SeatStore is the persistence contract the booking engine and the
// expiry reaper use for show seats.  Implementations exist for
// MySQL (ShowSeatRepo) and for in-memory testing (MemorySeatStore).
//
// Every mutating method is a conditional update: the transition is
// applied only when the row still satisfies the stated guard, and
// the boolean result reports whether it was applied.  This makes
// each transition atomic at the row level and safe to retry, which
// the engine and the reaper rely on instead of long transactions.
type SeatStore interface {
    // SeatsByIDs returns the show_seat rows for the given show
    // restricted to seatIDs, in no particular order.  Unknown IDs
    // are simply absent from the result.
    SeatsByIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.ShowSeat, error)

    // SeatsByShow returns every show_seat row of a show.
    SeatsByShow(ctx context.Context, showID uint64) ([]model.ShowSeat, error)

    // Lock moves a seat to LOCKED for bookingID until the given
    // time.  Guard: status is AVAILABLE, or status is LOCKED with
    // locked_until <= now (an expired hold being reclaimed in
    // place).
    Lock(ctx context.Context, showSeatID, bookingID uint64, until, now time.Time) (bool, error)

    // Book moves a seat from LOCKED to BOOKED.  Guard: status is
    // LOCKED and the holder is bookingID.
    Book(ctx context.Context, showSeatID, bookingID uint64) (bool, error)

    // ReleaseLock returns a LOCKED seat held by bookingID to
    // AVAILABLE, clearing holder and lock expiry.
    ReleaseLock(ctx context.Context, showSeatID, bookingID uint64) (bool, error)

    // ReleaseBooked returns a BOOKED seat owned by bookingID to
    // AVAILABLE.  Used when a confirmed booking is cancelled inside
    // the refund window.
    ReleaseBooked(ctx context.Context, showSeatID, bookingID uint64) (bool, error)

    // ReleaseExpired returns a seat to AVAILABLE only if it is
    // still LOCKED with locked_until <= now.  The reaper uses this
    // so it never clobbers a lock renewed between scan and sweep.
    ReleaseExpired(ctx context.Context, showSeatID uint64, now time.Time) (bool, error)

    // ExpiredLocks scans for LOCKED seats whose hold has lapsed at
    // time now, up to limit rows.  The reaper groups the result by
    // show before sweeping.
    ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ShowSeat, error)
}

// BookingStore is the persistence contract for bookings and their
// seats.  Implementations exist for MySQL (BookingRepo), in-memory
// testing (MemoryBookingStore) and a Redis read-through cache
// (CachedBookingStore) that wraps either.
type BookingStore interface {
    // Insert persists a new booking together with its seat rows,
    // atomically.  b.Seats must carry ShowSeatID and PriceCents;
    // generated IDs are written back into b.
    Insert(ctx context.Context, b *model.Booking) error

    // Get returns a booking with its seats, or ErrNotFound.
    Get(ctx context.Context, id uint64) (*model.Booking, error)

    // UpdateStates transitions booking_status from expect to the
    // given state.  A non-empty pay sets payment_status alongside
    // it; empty leaves that column untouched.  When payRef is
    // non-nil the payment reference is recorded too.  Returns false
    // when the booking was not in the expected state.
    UpdateStates(ctx context.Context, id uint64, expect, to model.BookingStatus, pay model.PaymentStatus, payRef *string) (bool, error)

    // UpdatePaymentStatus transitions only payment_status, guarded
    // by its expected current value.  The payment coordinator uses
    // this to claim a booking (PENDING -> PROCESSING) exactly once.
    UpdatePaymentStatus(ctx context.Context, id uint64, expect, to model.PaymentStatus) (bool, error)

    // ExpirePending moves a PENDING booking whose expires_at has
    // passed to EXPIRED.  Guard includes the deadline so a booking
    // confirmed between scan and sweep is left untouched.
    ExpirePending(ctx context.Context, id uint64, now time.Time) (bool, error)

    // ExpiredPending scans for PENDING bookings whose expires_at
    // has lapsed at time now, up to limit rows.
    ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)

    // ListByUser returns the user's bookings ordered by creation
    // time descending.  Seat rows are not populated.
    ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)

    // StatsByUser returns how many bookings the user has made and
    // the total amount spent on confirmed ones, in cents.
    StatsByUser(ctx context.Context, userID uint64) (count uint64, totalSpentCents uint64, err error)

    // RevenueByShow sums the confirmed booking amounts for a show.
    RevenueByShow(ctx context.Context, showID uint64) (uint64, error)
}
