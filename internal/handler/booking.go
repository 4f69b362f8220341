package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// BookingHandler serves the booking lifecycle: initiate, confirm,
// pay, cancel and the owner's read endpoints.
type BookingHandler struct {
	Engine   *engine.Engine
	Payments *payment.Coordinator
	Bookings repository.BookingStore
}

// NewBookingHandler constructs a BookingHandler and panics if any
// dependency is nil.
func NewBookingHandler(eng *engine.Engine, payments *payment.Coordinator, bookings repository.BookingStore) *BookingHandler {
	if eng == nil || payments == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: eng, Payments: payments, Bookings: bookings}
}

type bookingSeatView struct {
	ShowSeatID uint64 `json:"show_seat_id"`
	PriceCents uint32 `json:"price_cents"`
}

type bookingView struct {
	ID               uint64            `json:"id"`
	ShowID           uint64            `json:"show_id"`
	BookingStatus    string            `json:"booking_status"`
	PaymentStatus    string            `json:"payment_status"`
	TotalAmountCents uint32            `json:"total_amount_cents"`
	PaymentRef       *string           `json:"payment_ref,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
	Seats            []bookingSeatView `json:"seats,omitempty"`
}

// bookingJSON projects a booking for API responses. A PENDING
// booking whose hold already lapsed is presented as EXPIRED even
// when the reaper has not swept it yet; reads never mutate state.
func bookingJSON(b *model.Booking, now time.Time) bookingView {
	status := b.BookingStatus
	if status == model.BookingPending && b.Expired(now) {
		status = model.BookingExpired
	}
	v := bookingView{
		ID:               b.ID,
		ShowID:           b.ShowID,
		BookingStatus:    string(status),
		PaymentStatus:    string(b.PaymentStatus),
		TotalAmountCents: b.TotalAmountCents,
		PaymentRef:       b.PaymentRef,
		ExpiresAt:        b.ExpiresAt,
		CreatedAt:        b.CreatedAt,
	}
	for _, s := range b.Seats {
		v.Seats = append(v.Seats, bookingSeatView{ShowSeatID: s.ShowSeatID, PriceCents: s.PriceCents})
	}
	return v
}

// Create handles POST /v1/bookings. It locks the requested seats and
// creates a PENDING booking holding them until expires_at. The
// engine makes the operation all-or-nothing: on any unavailable seat
// nothing is locked and the offending IDs come back in the error
// details.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		ShowID      uint64   `json:"show_id"`
		SeatIDs     []uint64 `json:"seat_ids"`
		HoldSeconds int      `json:"hold_seconds"` // optional shorter hold
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.ShowID == 0 {
		return badRequest(c, "show_id is required")
	}
	// Clients may shorten the hold but never stretch it past the
	// configured lock window.
	hold := time.Duration(body.HoldSeconds) * time.Second
	if hold > h.Engine.LockDuration() {
		hold = h.Engine.LockDuration()
	}

	res, err := h.Engine.InitiateBooking(c.Request().Context(), userID, body.ShowID, body.SeatIDs, hold)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":         res.BookingID,
		"show_id":            res.ShowID,
		"seat_ids":           res.SeatIDs,
		"total_amount_cents": res.TotalAmountCents,
		"expires_at":         res.ExpiresAt,
		"booking_status":     model.BookingPending,
		"payment_status":     model.PaymentPending,
	})
}

// Confirm handles POST /v1/bookings/:id/confirm for payments settled
// out of band. The handler checks booking ownership; seat ownership
// is re-verified by the engine under the show mutex.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	_ = c.Bind(&body) // the reference is optional

	ctx := c.Request().Context()
	b, err := h.Bookings.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	if b.UserID != userID && currentRole(c) != model.RoleAdmin {
		return forbidden(c, "not booking owner")
	}

	fresh, err := h.Engine.ConfirmBooking(ctx, id, strings.TrimSpace(body.PaymentRef))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingJSON(fresh, time.Now().UTC()))
}

// Pay handles POST /v1/bookings/:id/pay. It hands the booking to the
// payment coordinator and returns 202 immediately; the charge, its
// retries and the resulting confirm or cancel run in the background.
// Poll GET /v1/bookings/:id for the outcome.
func (h *BookingHandler) Pay(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.Payments.Submit(c.Request().Context(), id, userID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"booking_id": id,
		"message":    "payment processing started",
	})
}

// Cancel handles POST /v1/bookings/:id/cancel. Pending bookings
// release their seats; confirmed ones additionally get a refund when
// cancelled outside the grace window before showtime.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	b, err := h.Engine.CancelBooking(c.Request().Context(), id, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingJSON(b, time.Now().UTC()))
}

// Get handles GET /v1/bookings/:id. Owners see their own bookings;
// admins see all.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	b, err := h.Bookings.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if b.UserID != userID && currentRole(c) != model.RoleAdmin {
		return forbidden(c, "not booking owner")
	}
	return c.JSON(http.StatusOK, bookingJSON(b, time.Now().UTC()))
}

// ListMine handles GET /v1/me/bookings, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return internalError(c)
	}
	now := time.Now().UTC()
	out := make([]bookingView, 0, len(items))
	for i := range items {
		out = append(out, bookingJSON(&items[i], now))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// MyStats handles GET /v1/me/stats: booking count and the total
// spent on confirmed bookings.
func (h *BookingHandler) MyStats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	count, spent, err := h.Bookings.StatsByUser(c.Request().Context(), userID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"bookings":          count,
		"total_spent_cents": spent,
	})
}
