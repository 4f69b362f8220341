package model

import (
    "fmt"
    "time"
)

// SeatType classifies a physical seat.  The type carries a price
// multiplier applied to the show's base price when show seats are
// created, so pricing is baked into each show_seat row up front.
type SeatType string

const (
    SeatRegular  SeatType = "REGULAR"
    SeatPremium  SeatType = "PREMIUM"
    SeatRecliner SeatType = "RECLINER"
    SeatVIP      SeatType = "VIP"
)

// DefaultMultiplier returns the standard price multiplier for the
// seat type.  Individual seats may override it via their
// PriceMultiplier column.
func (t SeatType) DefaultMultiplier() float64 {
    switch t {
    case SeatPremium:
        return 1.5
    case SeatRecliner:
        return 2.0
    case SeatVIP:
        return 2.5
    default:
        return 1.0
    }
}

// Valid reports whether t is one of the known seat types.
func (t SeatType) Valid() bool {
    switch t {
    case SeatRegular, SeatPremium, SeatRecliner, SeatVIP:
        return true
    }
    return false
}

// Seat describes a physical seat in a screen.  Seats are
// uniquely identified by their screen, row label and seat number.
//
// Fields:
//  ID              – primary key identifier.
//  ScreenID        – screen to which this seat belongs.
//  RowLabel        – letter or string designating the row.
//  SeatNumber      – number of the seat within the row.
//  SeatType        – type of seat (REGULAR, PREMIUM, RECLINER, VIP).
//  PriceMultiplier – factor applied to a show's base price.
//  IsActive        – whether the seat is sellable.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Seat struct {
    ID              uint64    // seats.id
    ScreenID        uint64    // seats.screen_id
    RowLabel        string    // seats.row_label
    SeatNumber      uint32    // seats.seat_number
    SeatType        SeatType  // seats.seat_type
    PriceMultiplier float64   // seats.price_multiplier
    IsActive        bool      // seats.is_active
    CreatedAt       time.Time // seats.created_at
    UpdatedAt       time.Time // seats.updated_at
}

// Label returns the human readable seat position, e.g. "A7".
func (s *Seat) Label() string {
    return fmt.Sprintf("%s%d", s.RowLabel, s.SeatNumber)
}
