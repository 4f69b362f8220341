package repository

import (
    "context"
    "database/sql"
    "errors"

    "time"

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo provides persistence for bookings and their seats.
// It implements BookingStore.  State transitions are conditional
// UPDATEs guarded by the expected current status; the only real
// transaction is Insert, which must write the bookings row and its
// booking_seats rows atomically.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// compile-time check that BookingRepo satisfies BookingStore.
var _ BookingStore = (*BookingRepo)(nil)

const bookingColumns = `id, user_id, show_id, booking_status, payment_status, total_amount_cents, payment_ref, expires_at, created_at, updated_at`

// scanBooking reads one bookings row.
func scanBooking(scan func(dest ...any) error) (model.Booking, error) {
    var (
        b      model.Booking
        bs, ps string
        ref    sql.NullString
    )
    if err := scan(&b.ID, &b.UserID, &b.ShowID, &bs, &ps, &b.TotalAmountCents, &ref, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
        return model.Booking{}, err
    }
    b.BookingStatus = model.BookingStatus(bs)
    b.PaymentStatus = model.PaymentStatus(ps)
    if ref.Valid {
        r := ref.String
        b.PaymentRef = &r
    }
    return b, nil
}

// Insert persists a booking together with its seat rows in one
// transaction and writes the generated IDs back into b.  The
// booking is stored exactly as passed; callers set the statuses and
// expiry before calling.
func (r *BookingRepo) Insert(ctx context.Context, b *model.Booking) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        }
    }()
    const q = `INSERT INTO bookings (user_id, show_id, booking_status, payment_status, total_amount_cents, expires_at)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        b.UserID, b.ShowID, string(b.BookingStatus), string(b.PaymentStatus), b.TotalAmountCents, b.ExpiresAt.UTC())
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    if len(b.Seats) > 0 {
        query := `INSERT INTO booking_seats (booking_id, show_seat_id, price_cents) VALUES `
        args := make([]interface{}, 0, len(b.Seats)*3)
        for i := range b.Seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?)"
            b.Seats[i].BookingID = b.ID
            args = append(args, b.ID, b.Seats[i].ShowSeatID, b.Seats[i].PriceCents)
        }
        if _, err = tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }
    // Read back DB-assigned timestamps so the caller sees the row as stored.
    const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
    if err = tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
        return err
    }
    err = tx.Commit()
    return err
}

// Get returns a booking and its seats, or ErrNotFound when no row
// matches.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (*model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(func(dest ...any) error {
        return r.db.QueryRowContext(ctx, q, id).Scan(dest...)
    })
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    const seatQ = `SELECT id, booking_id, show_seat_id, price_cents, created_at
                   FROM booking_seats WHERE booking_id = ? ORDER BY show_seat_id ASC`
    rows, err := r.db.QueryContext(ctx, seatQ, id)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var s model.BookingSeat
        if err := rows.Scan(&s.ID, &s.BookingID, &s.ShowSeatID, &s.PriceCents, &s.CreatedAt); err != nil {
            return nil, err
        }
        b.Seats = append(b.Seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &b, nil
}

// UpdateStates transitions booking_status from expect to to.  A
// non-empty pay sets payment_status alongside it; empty leaves the
// column untouched so booking-state writes never stomp a payment
// transition happening in parallel.  A non-nil payRef is stored; nil
// keeps any existing reference.  Returns false when the row was not
// in the expected state, which callers treat as a lost race rather
// than an error.
func (r *BookingRepo) UpdateStates(ctx context.Context, id uint64, expect, to model.BookingStatus, pay model.PaymentStatus, payRef *string) (bool, error) {
    const q = `UPDATE bookings
               SET booking_status = ?, payment_status = COALESCE(NULLIF(?, ''), payment_status), payment_ref = COALESCE(?, payment_ref), updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND booking_status = ?`
    res, err := r.db.ExecContext(ctx, q, string(to), string(pay), payRef, id, string(expect))
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// UpdatePaymentStatus transitions only the payment_status column,
// guarded by its expected current value.
func (r *BookingRepo) UpdatePaymentStatus(ctx context.Context, id uint64, expect, to model.PaymentStatus) (bool, error) {
    const q = `UPDATE bookings
               SET payment_status = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND payment_status = ?`
    res, err := r.db.ExecContext(ctx, q, string(to), id, string(expect))
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ExpirePending marks a PENDING booking as EXPIRED, but only while
// its expires_at is genuinely in the past.  A booking confirmed or
// renewed between the reaper's scan and this call fails the guard.
func (r *BookingRepo) ExpirePending(ctx context.Context, id uint64, now time.Time) (bool, error) {
    const q = `UPDATE bookings
               SET booking_status = 'EXPIRED', updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND booking_status = 'PENDING' AND expires_at <= ?`
    res, err := r.db.ExecContext(ctx, q, id, now.UTC())
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// ExpiredPending lists PENDING bookings whose hold lapsed at or
// before now, oldest first, up to limit rows.
func (r *BookingRepo) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE booking_status = 'PENDING' AND expires_at <= ?
               ORDER BY expires_at ASC
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ListByUser returns the user's bookings, newest first.  Seat rows
// are not populated; use Get for the full picture of one booking.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE user_id = ?
               ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// StatsByUser reports the number of bookings the user has made and
// the total spent on confirmed ones.
func (r *BookingRepo) StatsByUser(ctx context.Context, userID uint64) (uint64, uint64, error) {
    const q = `SELECT COUNT(*),
                      COALESCE(SUM(CASE WHEN booking_status = 'CONFIRMED' THEN total_amount_cents ELSE 0 END), 0)
               FROM bookings WHERE user_id = ?`
    var count, total uint64
    if err := r.db.QueryRowContext(ctx, q, userID).Scan(&count, &total); err != nil {
        return 0, 0, err
    }
    return count, total, nil
}

// RevenueByShow sums the confirmed booking amounts for a show.
func (r *BookingRepo) RevenueByShow(ctx context.Context, showID uint64) (uint64, error) {
    const q = `SELECT COALESCE(SUM(total_amount_cents), 0)
               FROM bookings WHERE show_id = ? AND booking_status = 'CONFIRMED'`
    var total uint64
    if err := r.db.QueryRowContext(ctx, q, showID).Scan(&total); err != nil {
        return 0, err
    }
    return total, nil
}
