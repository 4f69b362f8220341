// Package queue publishes and consumes booking lifecycle events over
// the message broker.
package queue

// Queue names double as routing keys on the default exchange.
const (
	ConfirmedQueue = "booking.confirmed"
	CancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published when a booking reaches CONFIRMED.
// It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	EventID          string   `json:"event_id"`
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ShowID           uint64   `json:"show_id"`
	ShowSeatIDs      []uint64 `json:"show_seat_ids"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	PaymentRef       string   `json:"payment_ref,omitempty"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking is cancelled,
// whether by its owner or by a failed payment. Refunded tells
// consumers whether money moved back.
type BookingCancelledEvent struct {
	EventID          string   `json:"event_id"`
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ShowID           uint64   `json:"show_id"`
	ShowSeatIDs      []uint64 `json:"show_seat_ids"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	Refunded         bool     `json:"refunded"`
	CancelledAt      string   `json:"cancelled_at"`
}
