package model

import "time"

// BookingStatus enumerates the lifecycle of a booking.  PENDING is
// the only non-terminal state: it moves to CONFIRMED on successful
// payment, to CANCELLED on user cancellation or payment failure,
// and to EXPIRED when the seat lock window lapses unpaid.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingExpired   BookingStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further booking
// transitions.
func (s BookingStatus) Terminal() bool {
    return s == BookingCancelled || s == BookingExpired
}

// PaymentStatus tracks the payment side of a booking independently
// of the booking status.
type PaymentStatus string

const (
    PaymentPending    PaymentStatus = "PENDING"
    PaymentProcessing PaymentStatus = "PROCESSING"
    PaymentCompleted  PaymentStatus = "COMPLETED"
    PaymentFailed     PaymentStatus = "FAILED"
    PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Booking records a user's attempt to purchase a set of seats for
// a show.  A PENDING booking holds its seats LOCKED until
// ExpiresAt; confirmation flips the seats to BOOKED, while
// cancellation and expiry release them.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  ShowID           – show being booked.
//  BookingStatus    – state of the booking (PENDING, CONFIRMED,
//                     CANCELLED, EXPIRED).
//  PaymentStatus    – state of the payment (PENDING, PROCESSING,
//                     COMPLETED, FAILED, REFUNDED).
//  TotalAmountCents – total price in cents for all seats.
//  PaymentRef       – external payment reference, if any.
//  ExpiresAt        – when the PENDING hold lapses.
//  CreatedAt        – creation timestamp (booking time).
//  UpdatedAt        – last update timestamp.
//  Seats            – booked seats; populated by reads that join
//                     booking_seats, nil otherwise.
type Booking struct {
    ID               uint64        // bookings.id
    UserID           uint64        // bookings.user_id
    ShowID           uint64        // bookings.show_id
    BookingStatus    BookingStatus // bookings.booking_status
    PaymentStatus    PaymentStatus // bookings.payment_status
    TotalAmountCents uint32        // bookings.total_amount_cents
    PaymentRef       *string       // bookings.payment_ref (nullable)
    ExpiresAt        time.Time     // bookings.expires_at
    CreatedAt        time.Time     // bookings.created_at
    UpdatedAt        time.Time     // bookings.updated_at
    Seats            []BookingSeat // joined from booking_seats
}

// Expired reports whether the booking's hold has lapsed at time
// now.  Only meaningful for PENDING bookings.
func (b *Booking) Expired(now time.Time) bool {
    return !b.ExpiresAt.After(now)
}

// SeatIDs returns the show_seat IDs attached to the booking.
func (b *Booking) SeatIDs() []uint64 {
    ids := make([]uint64, 0, len(b.Seats))
    for _, s := range b.Seats {
        ids = append(ids, s.ShowSeatID)
    }
    return ids
}

// BookingSeat links a booking to an individual show seat with the
// price captured at booking time.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – reference to the booking.
//  ShowSeatID – show seat included in the booking.
//  PriceCents – price for this seat in cents.
//  CreatedAt  – creation timestamp.
type BookingSeat struct {
    ID         uint64    // booking_seats.id
    BookingID  uint64    // booking_seats.booking_id
    ShowSeatID uint64    // booking_seats.show_seat_id
    PriceCents uint32    // booking_seats.price_cents
    CreatedAt  time.Time // booking_seats.created_at
}
