package repository // repository for show seat persistence

import (
    "context"      // context for managing deadlines
    "database/sql" // sql provides DB interfaces
    "strings"
    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ShowSeatRepo encapsulates database operations for show_seats.  It
// implements SeatStore: every state transition is a single UPDATE
// whose WHERE clause re-checks the expected current state, and the
// driver's RowsAffected tells the caller whether the transition was
// applied.  No transaction spans more than one row.
type ShowSeatRepo struct {
    db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo {
    return &ShowSeatRepo{db: db}
}

// compile-time check that ShowSeatRepo satisfies SeatStore.
var _ SeatStore = (*ShowSeatRepo)(nil)

const showSeatColumns = `id, show_id, seat_id, status, holder_booking_id, locked_until, price_cents, created_at, updated_at`

// scanShowSeat reads one show_seat row, converting the nullable
// holder and lock-expiry columns into pointers.
func scanShowSeat(scan func(dest ...any) error) (model.ShowSeat, error) {
    var (
        s      model.ShowSeat
        holder sql.NullInt64
        until  sql.NullTime
        status string
    )
    if err := scan(&s.ID, &s.ShowID, &s.SeatID, &status, &holder, &until, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt); err != nil {
        return model.ShowSeat{}, err
    }
    s.Status = model.SeatStatus(status)
    if holder.Valid {
        h := uint64(holder.Int64)
        s.HolderBookingID = &h
    }
    if until.Valid {
        t := until.Time
        s.LockedUntil = &t
    }
    return s, nil
}

// SeatsByIDs returns the show_seat rows matching the given seat IDs
// for one show.  The result may be shorter than seatIDs when some
// IDs do not exist; callers detect that by comparing lengths.
func (r *ShowSeatRepo) SeatsByIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.ShowSeat, error) {
    if len(seatIDs) == 0 {
        return []model.ShowSeat{}, nil
    }
    // Build the IN clause with one placeholder per seat ID.
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seatIDs)), ",")
    query := `SELECT ` + showSeatColumns + ` FROM show_seats WHERE show_id = ? AND id IN (` + placeholders + `)`
    args := make([]interface{}, 0, len(seatIDs)+1)
    args = append(args, showID)
    for _, id := range seatIDs {
        args = append(args, id)
    }
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.ShowSeat
    for rows.Next() {
        s, err := scanShowSeat(rows.Scan)
        if err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// SeatsByShow returns every show_seat row of a show ordered by seat
// ID so seat maps render deterministically.
func (r *ShowSeatRepo) SeatsByShow(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
    const q = `SELECT ` + showSeatColumns + ` FROM show_seats WHERE show_id = ? ORDER BY seat_id ASC`
    rows, err := r.db.QueryContext(ctx, q, showID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.ShowSeat
    for rows.Next() {
        s, err := scanShowSeat(rows.Scan)
        if err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// Lock claims a seat for a pending booking.  The WHERE clause
// accepts an AVAILABLE seat or a LOCKED seat whose previous hold
// already lapsed, so stale locks are reclaimed in place without a
// separate cleanup step.
func (r *ShowSeatRepo) Lock(ctx context.Context, showSeatID, bookingID uint64, until, now time.Time) (bool, error) {
    const q = `UPDATE show_seats
               SET status = 'LOCKED', holder_booking_id = ?, locked_until = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?
                 AND (status = 'AVAILABLE'
                      OR (status = 'LOCKED' AND locked_until IS NOT NULL AND locked_until <= ?))`
    res, err := r.db.ExecContext(ctx, q, bookingID, until.UTC(), showSeatID, now.UTC())
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// Book flips a seat held by the booking to BOOKED.  The holder
// column keeps pointing at the booking so cancellations can verify
// ownership later.
func (r *ShowSeatRepo) Book(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
    const q = `UPDATE show_seats
               SET status = 'BOOKED', locked_until = NULL, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'LOCKED' AND holder_booking_id = ?`
    res, err := r.db.ExecContext(ctx, q, showSeatID, bookingID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ReleaseLock frees a seat still locked by the booking, e.g. when a
// multi-seat lock fails halfway or a pending booking is cancelled.
func (r *ShowSeatRepo) ReleaseLock(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
    const q = `UPDATE show_seats
               SET status = 'AVAILABLE', holder_booking_id = NULL, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'LOCKED' AND holder_booking_id = ?`
    res, err := r.db.ExecContext(ctx, q, showSeatID, bookingID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ReleaseBooked frees a seat owned by a confirmed booking that is
// being cancelled inside the refund window.
func (r *ShowSeatRepo) ReleaseBooked(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
    const q = `UPDATE show_seats
               SET status = 'AVAILABLE', holder_booking_id = NULL, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'BOOKED' AND holder_booking_id = ?`
    res, err := r.db.ExecContext(ctx, q, showSeatID, bookingID)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ReleaseExpired frees a seat only while its lock is still lapsed.
// A seat re-locked by a new booking between scan and sweep fails
// the locked_until guard and is left alone.
func (r *ShowSeatRepo) ReleaseExpired(ctx context.Context, showSeatID uint64, now time.Time) (bool, error) {
    const q = `UPDATE show_seats
               SET status = 'AVAILABLE', holder_booking_id = NULL, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'LOCKED' AND locked_until IS NOT NULL AND locked_until <= ?`
    res, err := r.db.ExecContext(ctx, q, showSeatID, now.UTC())
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ExpiredLocks lists seats whose hold lapsed at or before now,
// ordered by show so the reaper can batch work per show.
func (r *ShowSeatRepo) ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ShowSeat, error) {
    const q = `SELECT ` + showSeatColumns + `
               FROM show_seats
               WHERE status = 'LOCKED' AND locked_until IS NOT NULL AND locked_until <= ?
               ORDER BY show_id ASC, id ASC
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []model.ShowSeat
    for rows.Next() {
        s, err := scanShowSeat(rows.Scan)
        if err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// CreateBulkTx inserts the show_seat rows for a freshly scheduled
// show in one statement, within the caller's transaction.  Only
// show_id, seat_id, status and price_cents are written; timestamps
// default in the DB.
func (r *ShowSeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ShowSeat) error {
    if len(seats) == 0 {
        return nil
    }
    // Build the INSERT with placeholders for each seat.  Each row
    // requires four values.  We rely on the DB defaults for timestamps.
    query := `INSERT INTO show_seats (show_id, seat_id, status, price_cents) VALUES `
    args := make([]interface{}, 0, len(seats)*4)
    for i, ss := range seats {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, ss.ShowID, ss.SeatID, string(ss.Status), ss.PriceCents)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}
