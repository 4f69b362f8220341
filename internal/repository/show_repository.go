// Package repository contains data access logic for Show domain operations. This file
// defines repository methods for shows. A Show represents a scheduled screening of a
// movie on a screen. Timestamps are stored in UTC and scanned directly into
// time.Time via the parseTime DSN option.
package repository

import (
    "context"      // context for controlling query lifetime
    "database/sql" // sql provides DB abstraction
    "errors"       // errors for sentinel comparisons
    "time"         // time for schedule boundaries

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// showColumns is the canonical column list scanned by scanShow.
const showColumns = `id, movie_id, screen_id, starts_at, ends_at, base_price_cents, status, created_at, updated_at`

// scanShow reads one shows row into a model.Show.
func scanShow(scan func(dest ...any) error) (*model.Show, error) {
    var (
        s  model.Show
        st string
    )
    if err := scan(&s.ID, &s.MovieID, &s.ScreenID, &s.StartsAt, &s.EndsAt, &s.BasePriceCents, &st, &s.CreatedAt, &s.UpdatedAt); err != nil {
        return nil, err
    }
    s.Status = model.ShowStatus(st)
    return &s, nil
}

// ShowRepo manages persistence for shows.
type ShowRepo struct {
    db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
    return &ShowRepo{db: db}
}

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.  Show scheduling uses
// this to insert the show and fan out its show_seats atomically.
func (r *ShowRepo) DB() *sql.DB {
    return r.db
}

// CreateTx inserts a new show using the provided transaction instead of
// the repository's DB handle.  The caller must commit or roll back the
// transaction.  On success, the generated ID and DB-default fields
// (status, created_at, updated_at) are populated on the given Show.
func (r *ShowRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Show) error {
    const q = `INSERT INTO shows (movie_id, screen_id, starts_at, ends_at, base_price_cents) VALUES (?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, s.MovieID, s.ScreenID, s.StartsAt, s.EndsAt, s.BasePriceCents)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    const sel = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
    row := tx.QueryRowContext(ctx, sel, s.ID)
    created, err := scanShow(row.Scan)
    if err != nil {
        return err
    }
    *s = *created
    return nil
}

// GetByID retrieves a show by its ID.  It returns ErrNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
    const q = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
    row := r.db.QueryRowContext(ctx, q, id)
    s, err := scanShow(row.Scan)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    return s, nil
}

// ListByMovie returns shows for a movie that have not yet ended,
// ordered by start time ascending.  Cancelled shows are excluded so
// browse pages only offer shows that can actually be booked.
func (r *ShowRepo) ListByMovie(ctx context.Context, movieID uint64, now time.Time) ([]model.Show, error) {
    const q = `SELECT ` + showColumns + ` FROM shows
               WHERE movie_id = ? AND ends_at > ? AND status IN ('SCHEDULED', 'IN_PROGRESS')
               ORDER BY starts_at ASC`
    return r.queryShows(ctx, q, movieID, now)
}

// ListByScreen returns every show scheduled on a screen ordered by
// start time.  Admin scheduling views use it to inspect a screen's
// timetable, so it includes cancelled and completed shows.
func (r *ShowRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.Show, error) {
    const q = `SELECT ` + showColumns + ` FROM shows WHERE screen_id = ? ORDER BY starts_at ASC`
    return r.queryShows(ctx, q, screenID)
}

// HasOverlap reports whether any active show on the screen overlaps
// the interval [startsAt, endsAt).  Two shows overlap when each one
// starts before the other ends.  Cancelled and completed shows do not
// block new bookings of the slot.
func (r *ShowRepo) HasOverlap(ctx context.Context, screenID uint64, startsAt, endsAt time.Time) (bool, error) {
    const q = `SELECT COUNT(*) FROM shows
               WHERE screen_id = ? AND status IN ('SCHEDULED', 'IN_PROGRESS')
                 AND starts_at < ? AND ends_at > ?`
    var n int
    if err := r.db.QueryRowContext(ctx, q, screenID, endsAt, startsAt).Scan(&n); err != nil {
        return false, err
    }
    return n > 0, nil
}

// Cancel transitions a show from SCHEDULED to CANCELLED provided it
// has not started yet.  It returns false when the guard did not match,
// meaning the show already started, finished or was cancelled before.
func (r *ShowRepo) Cancel(ctx context.Context, id uint64, now time.Time) (bool, error) {
    const q = `UPDATE shows
               SET status = 'CANCELLED', updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'SCHEDULED' AND starts_at > ?`
    res, err := r.db.ExecContext(ctx, q, id, now)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// queryShows runs a query expected to yield shows rows and scans them all.
func (r *ShowRepo) queryShows(ctx context.Context, q string, args ...any) ([]model.Show, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Show, 0)
    for rows.Next() {
        s, err := scanShow(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
