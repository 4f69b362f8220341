package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// showCatalog is a fixed in-memory ShowStore, mirroring what the
// engine tests use.
type showCatalog struct {
	mu    sync.RWMutex
	shows map[uint64]model.Show
}

func (c *showCatalog) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

type bookingFixture struct {
	handler  *BookingHandler
	seats    *repository.MemorySeatStore
	bookings *repository.MemoryBookingStore
	shows    *showCatalog
	payments *payment.Coordinator
}

// newBookingFixture wires a real engine and payment coordinator over
// in-memory stores, with an always-approving gateway. The coordinator
// is not started; tests that exercise Pay start and stop it.
func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		seats:    repository.NewMemorySeatStore(),
		bookings: repository.NewMemoryBookingStore(),
		shows:    &showCatalog{shows: make(map[uint64]model.Show)},
	}
	eng := engine.New(f.seats, f.bookings, f.shows, lock.NewRegistry(), zap.NewNop(), engine.Config{})
	f.payments = payment.New(payment.NewMockGateway(1, 0), eng, f.bookings, zap.NewNop(), payment.Config{Backoff: time.Millisecond})
	eng.SetRefunder(f.payments)
	f.handler = NewBookingHandler(eng, f.payments, f.bookings)
	return f
}

func (f *bookingFixture) addShow(id uint64, startsIn time.Duration) {
	now := time.Now().UTC()
	f.shows.mu.Lock()
	defer f.shows.mu.Unlock()
	f.shows.shows[id] = model.Show{
		ID:       id,
		MovieID:  1,
		ScreenID: 1,
		StartsAt: now.Add(startsIn),
		EndsAt:   now.Add(startsIn + 2*time.Hour),
		Status:   model.ShowScheduled,
	}
}

func (f *bookingFixture) addSeats(showID uint64, priceCents uint32, n int) []uint64 {
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, f.seats.Add(model.ShowSeat{
			ShowID:     showID,
			SeatID:     uint64(i + 1),
			Status:     model.SeatAvailable,
			PriceCents: priceCents,
		}))
	}
	return ids
}

// request builds an echo context carrying the claims the JWT
// middleware would have set. userID 0 leaves the context anonymous.
func request(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
		c.Set("role", role)
	}
	return c, rec
}

func TestBookingCreate_LocksSeatsAndReturnsPending(t *testing.T) {
	f := newBookingFixture()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 12000, 3)

	body := fmt.Sprintf(`{"show_id":1,"seat_ids":[%d,%d]}`, seatIDs[0], seatIDs[1])
	c, rec := request(http.MethodPost, "/v1/bookings", body, 7, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		BookingID        uint64   `json:"booking_id"`
		ShowID           uint64   `json:"show_id"`
		SeatIDs          []uint64 `json:"seat_ids"`
		TotalAmountCents uint32   `json:"total_amount_cents"`
		BookingStatus    string   `json:"booking_status"`
		PaymentStatus    string   `json:"payment_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.BookingID)
	assert.Equal(t, uint64(1), resp.ShowID)
	assert.ElementsMatch(t, seatIDs[:2], resp.SeatIDs)
	assert.Equal(t, uint32(24000), resp.TotalAmountCents)
	assert.Equal(t, string(model.BookingPending), resp.BookingStatus)
	assert.Equal(t, string(model.PaymentPending), resp.PaymentStatus)

	for _, id := range seatIDs[:2] {
		seat, ok := f.seats.Seat(id)
		require.True(t, ok)
		assert.Equal(t, model.SeatLocked, seat.Status)
	}
	untouched, _ := f.seats.Seat(seatIDs[2])
	assert.Equal(t, model.SeatAvailable, untouched.Status)
}

func TestBookingCreate_ConflictListsFailedSeats(t *testing.T) {
	f := newBookingFixture()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 3)

	c, rec := request(http.MethodPost, "/v1/bookings",
		fmt.Sprintf(`{"show_id":1,"seat_ids":[%d,%d]}`, seatIDs[0], seatIDs[1]), 7, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Second user overlaps on one seat: nothing is locked for them.
	c, rec = request(http.MethodPost, "/v1/bookings",
		fmt.Sprintf(`{"show_id":1,"seat_ids":[%d,%d]}`, seatIDs[1], seatIDs[2]), 8, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
		Details   struct {
			FailedSeatIDs []uint64 `json:"failed_seat_ids"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SEAT_UNAVAILABLE", resp.ErrorCode)
	assert.Equal(t, []uint64{seatIDs[1]}, resp.Details.FailedSeatIDs)

	seat, _ := f.seats.Seat(seatIDs[2])
	assert.Equal(t, model.SeatAvailable, seat.Status, "all-or-nothing: the free seat must not stay locked")
}

func TestBookingGet_OwnerAndAdminOnly(t *testing.T) {
	f := newBookingFixture()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 1)

	c, rec := request(http.MethodPost, "/v1/bookings",
		fmt.Sprintf(`{"show_id":1,"seat_ids":[%d]}`, seatIDs[0]), 7, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	get := func(userID uint64, role string) int {
		c, rec := request(http.MethodGet, "/v1/bookings/1", "", userID, role)
		c.SetParamNames("id")
		c.SetParamValues("1")
		require.NoError(t, f.handler.Get(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get(7, model.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, get(8, model.RoleCustomer))
	assert.Equal(t, http.StatusOK, get(8, model.RoleAdmin))

	// No claims on the context at all.
	c, rec = request(http.MethodGet, "/v1/bookings/1", "", 0, "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, f.handler.Get(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingPay_ConfirmsInBackground(t *testing.T) {
	f := newBookingFixture()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 2)

	c, rec := request(http.MethodPost, "/v1/bookings",
		fmt.Sprintf(`{"show_id":1,"seat_ids":[%d,%d]}`, seatIDs[0], seatIDs[1]), 7, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, f.payments.Start())

	c, rec = request(http.MethodPost, "/v1/bookings/1/pay", "", 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, f.handler.Pay(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Stop waits for the in-flight charge and the confirm it triggers.
	f.payments.Stop()

	b, err := f.bookings.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.BookingStatus)
	assert.Equal(t, model.PaymentCompleted, b.PaymentStatus)
	require.NotNil(t, b.PaymentRef)
	assert.NotEmpty(t, *b.PaymentRef)

	for _, id := range seatIDs {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatBooked, seat.Status)
	}
}

func TestBookingConfirm_OwnerWithExternalRef(t *testing.T) {
	f := newBookingFixture()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 1)

	c, rec := request(http.MethodPost, "/v1/bookings",
		fmt.Sprintf(`{"show_id":1,"seat_ids":[%d]}`, seatIDs[0]), 7, model.RoleCustomer)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// A stranger cannot confirm someone else's booking.
	c, rec = request(http.MethodPost, "/v1/bookings/1/confirm", `{"payment_ref":"tx-evil"}`, 8, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, f.handler.Confirm(c))
	require.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = request(http.MethodPost, "/v1/bookings/1/confirm", `{"payment_ref":"tx-123"}`, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, f.handler.Confirm(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var view bookingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, string(model.BookingConfirmed), view.BookingStatus)
	require.NotNil(t, view.PaymentRef)
	assert.Equal(t, "tx-123", *view.PaymentRef)
}

func TestBookingJSON_PresentsLapsedPendingAsExpired(t *testing.T) {
	now := time.Now().UTC()
	b := &model.Booking{
		ID:            1,
		BookingStatus: model.BookingPending,
		PaymentStatus: model.PaymentPending,
		ExpiresAt:     now.Add(-time.Minute),
	}
	assert.Equal(t, string(model.BookingExpired), bookingJSON(b, now).BookingStatus)
	// The projection never touches the record itself.
	assert.Equal(t, model.BookingPending, b.BookingStatus)

	b.ExpiresAt = now.Add(time.Minute)
	assert.Equal(t, string(model.BookingPending), bookingJSON(b, now).BookingStatus)
}
