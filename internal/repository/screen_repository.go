package repository // repository defines data access for screens and their seats

import (
    "context"      // context allows query cancellation and timeouts
    "database/sql" // sql provides DB primitives
    "errors"       // errors for sentinel comparisons

    "github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ScreenRepo provides methods to work with screens and the physical
// seats laid out in them.
type ScreenRepo struct {
    db *sql.DB
}

// NewScreenRepo constructs a ScreenRepo with the given DB handle.
func NewScreenRepo(db *sql.DB) *ScreenRepo {
    return &ScreenRepo{db: db}
}

// CreateWithSeats inserts a screen together with its seat grid in a
// single transaction.  Seats must reference positions inside the
// grid; their ScreenID is filled in here.  On success the generated
// IDs are populated on the screen and on each seat.
func (r *ScreenRepo) CreateWithSeats(ctx context.Context, s *model.Screen, seats []model.Seat) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        }
    }()
    const q = `INSERT INTO screens (name, seat_rows, seats_per_row) VALUES (?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, s.Name, s.SeatRows, s.SeatsPerRow)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    if len(seats) > 0 {
        query := `INSERT INTO seats (screen_id, row_label, seat_number, seat_type, price_multiplier) VALUES `
        args := make([]interface{}, 0, len(seats)*5)
        for i := range seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?, ?)"
            seats[i].ScreenID = s.ID
            args = append(args, s.ID, seats[i].RowLabel, seats[i].SeatNumber, string(seats[i].SeatType), seats[i].PriceMultiplier)
        }
        var seatRes sql.Result
        if seatRes, err = tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
        // MySQL assigns consecutive IDs for multi-row inserts; the first
        // LastInsertId anchors the block.
        first, idErr := seatRes.LastInsertId()
        if idErr == nil {
            for i := range seats {
                seats[i].ID = uint64(first) + uint64(i)
            }
        }
    }
    if err = tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM screens WHERE id = ?`, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
        return err
    }
    err = tx.Commit()
    return err
}

// GetByID retrieves a screen by ID, returning ErrNotFound when no
// row matches.
func (r *ScreenRepo) GetByID(ctx context.Context, id uint64) (*model.Screen, error) {
    const q = `SELECT id, name, seat_rows, seats_per_row, is_active, created_at, updated_at FROM screens WHERE id = ?`
    var s model.Screen
    err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.Name, &s.SeatRows, &s.SeatsPerRow, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    return &s, nil
}

// List returns all screens ordered by name.
func (r *ScreenRepo) List(ctx context.Context) ([]model.Screen, error) {
    const q = `SELECT id, name, seat_rows, seats_per_row, is_active, created_at, updated_at FROM screens ORDER BY name ASC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Screen, 0)
    for rows.Next() {
        var s model.Screen
        if err := rows.Scan(&s.ID, &s.Name, &s.SeatRows, &s.SeatsPerRow, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// SeatsByScreen retrieves the physical seats of a screen ordered by
// row_label then seat_number.  Show scheduling uses this to fan out
// show_seat rows.
func (r *ScreenRepo) SeatsByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
    const q = `SELECT id, screen_id, row_label, seat_number, seat_type, price_multiplier, is_active, created_at, updated_at
               FROM seats
               WHERE screen_id = ?
               ORDER BY row_label, seat_number`
    rows, err := r.db.QueryContext(ctx, q, screenID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Seat, 0)
    for rows.Next() {
        var (
            s  model.Seat
            st string
        )
        if err := rows.Scan(&s.ID, &s.ScreenID, &s.RowLabel, &s.SeatNumber, &st, &s.PriceMultiplier, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
            return nil, err
        }
        s.SeatType = model.SeatType(st)
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
