package model

import "time"

// SeatStatus enumerates the availability states of a show seat.
//
// AVAILABLE seats can be locked by a booking.  LOCKED seats are
// held by a pending booking until LockedUntil; once that passes the
// seat is reclaimable even though the row still says LOCKED.
// BOOKED seats belong to a confirmed booking.  MAINTENANCE seats
// are blocked by operations and never sellable.
type SeatStatus string

const (
    SeatAvailable   SeatStatus = "AVAILABLE"
    SeatLocked      SeatStatus = "LOCKED"
    SeatBooked      SeatStatus = "BOOKED"
    SeatMaintenance SeatStatus = "MAINTENANCE"
)

// ShowSeat links a physical seat to a particular show and tracks
// availability and pricing.  There is one show_seat record for
// every seat on the screen, created when the show is scheduled.
//
// Fields:
//  ID              – primary key identifier.
//  ShowID          – the show to which this seat belongs.
//  SeatID          – the physical seat being made available.
//  Status          – availability status (AVAILABLE, LOCKED,
//                    BOOKED, MAINTENANCE).
//  HolderBookingID – booking currently holding or owning the seat
//                    (nil when AVAILABLE or MAINTENANCE).
//  LockedUntil     – when a LOCKED hold expires (nil otherwise).
//  PriceCents      – price in cents, base price × seat multiplier,
//                    fixed when the show is created.
//  CreatedAt       – timestamp when the record was created.
//  UpdatedAt       – timestamp when the record was last updated.
type ShowSeat struct {
    ID              uint64     // show_seats.id
    ShowID          uint64     // show_seats.show_id
    SeatID          uint64     // show_seats.seat_id
    Status          SeatStatus // show_seats.status
    HolderBookingID *uint64    // show_seats.holder_booking_id (nullable)
    LockedUntil     *time.Time // show_seats.locked_until (nullable)
    PriceCents      uint32     // show_seats.price_cents
    CreatedAt       time.Time  // show_seats.created_at
    UpdatedAt       time.Time  // show_seats.updated_at
}

// LockExpired reports whether the seat is LOCKED but its hold has
// lapsed at time now.  Such seats are treated as available by the
// booking path and reclaimed lazily; readers must not mutate them.
func (s *ShowSeat) LockExpired(now time.Time) bool {
    return s.Status == SeatLocked && s.LockedUntil != nil && !s.LockedUntil.After(now)
}

// AvailableAt reports whether the seat can be offered for sale at
// time now, counting expired locks as available.
func (s *ShowSeat) AvailableAt(now time.Time) bool {
    return s.Status == SeatAvailable || s.LockExpired(now)
}
