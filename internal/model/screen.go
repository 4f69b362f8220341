package model

import "time"

// Screen represents an individual auditorium.  Each screen defines
// a rectangular seat grid (rows × seats per row); the physical
// seats themselves live in the `seats` table and carry a seat type
// with a price multiplier.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – unique screen name (e.g. "Screen 1", "IMAX").
//  SeatRows    – number of seating rows.
//  SeatsPerRow – number of seats in each row.
//  IsActive    – whether the screen can host new shows.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Screen struct {
    ID          uint64    // screens.id
    Name        string    // screens.name
    SeatRows    uint32    // screens.seat_rows
    SeatsPerRow uint32    // screens.seats_per_row
    IsActive    bool      // screens.is_active
    CreatedAt   time.Time // screens.created_at
    UpdatedAt   time.Time // screens.updated_at
}

// TotalSeats returns the capacity of the screen's seat grid.
func (s *Screen) TotalSeats() uint32 {
    return s.SeatRows * s.SeatsPerRow
}
