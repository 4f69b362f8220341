package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// showCatalog is a fixed in-memory show store for tests.
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

// scriptedGateway is a deterministic Gateway for coordinator tests.
// It can fail a fixed number of charges with transport errors, then
// approve or decline, and records every call.
type scriptedGateway struct {
	mu       sync.Mutex
	approve  bool
	reason   string
	failures int    // transport errors to emit before deciding
	onCharge func() // runs between bookkeeping and the decision

	charges int
	refunds []string
}

func (g *scriptedGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	g.mu.Lock()
	g.charges++
	fail := g.failures > 0
	if fail {
		g.failures--
	}
	hook := g.onCharge
	approve, reason := g.approve, g.reason
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return nil, errors.New("gateway timeout")
	}
	if !approve {
		return &ChargeResponse{Approved: false, DeclineReason: reason}, nil
	}
	return &ChargeResponse{Approved: true, TransactionID: fmt.Sprintf("txn_%d", req.BookingID)}, nil
}

func (g *scriptedGateway) Refund(ctx context.Context, transactionID string, amountCents uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, transactionID)
	return nil
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

func (g *scriptedGateway) refunded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.refunds...)
}

type fixture struct {
	coord    *Coordinator
	engine   *engine.Engine
	seats    *repository.MemorySeatStore
	bookings *repository.MemoryBookingStore
	shows    *showCatalog
	gateway  *scriptedGateway
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	f := &fixture{
		seats:    repository.NewMemorySeatStore(),
		bookings: repository.NewMemoryBookingStore(),
		shows:    &showCatalog{shows: make(map[uint64]model.Show)},
		gateway:  &scriptedGateway{approve: true},
	}
	f.engine = engine.New(f.seats, f.bookings, f.shows, lock.NewRegistry(), zap.NewNop(), engine.Config{})
	f.coord = New(f.gateway, f.engine, f.bookings, zap.NewNop(), cfg)
	f.engine.SetRefunder(f.coord)
	require.NoError(t, f.coord.Start())
	t.Cleanup(f.coord.Stop)
	return f
}

func (f *fixture) addShow(id uint64, startsIn time.Duration) {
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

func (f *fixture) addSeats(showID uint64, priceCents uint32, n int) []uint64 {
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

// initiate seeds a show with seats and opens a booking for user 7.
func (f *fixture) initiate(t *testing.T, lockFor time.Duration) *engine.BookingResult {
	t.Helper()
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 2)
	res, err := f.engine.InitiateBooking(context.Background(), 7, 1, seatIDs, lockFor)
	require.NoError(t, err)
	return res
}

func (f *fixture) booking(t *testing.T, id uint64) *model.Booking {
	t.Helper()
	b, err := f.bookings.Get(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestSubmit_ApprovedChargeConfirmsBooking(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.initiate(t, 0)

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingConfirmed
	}, 2*time.Second, 5*time.Millisecond)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.PaymentCompleted, b.PaymentStatus)
	require.NotNil(t, b.PaymentRef)
	assert.Equal(t, fmt.Sprintf("txn_%d", res.BookingID), *b.PaymentRef)
	for _, id := range res.SeatIDs {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatBooked, seat.Status)
	}
	assert.Equal(t, 1, f.gateway.chargeCount())
}

func TestSubmit_DeclineCancelsBookingAndReleasesSeats(t *testing.T) {
	f := newFixture(t, Config{})
	f.gateway.approve = false
	f.gateway.reason = "insufficient funds"
	res := f.initiate(t, 0)

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingCancelled
	}, 2*time.Second, 5*time.Millisecond)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.PaymentFailed, b.PaymentStatus)
	for _, id := range res.SeatIDs {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatAvailable, seat.Status)
		assert.Nil(t, seat.HolderBookingID)
	}
	assert.Empty(t, f.gateway.refunded(), "declined charge must not be refunded")
}

func TestSubmit_RetriesTransportErrorsThenSucceeds(t *testing.T) {
	f := newFixture(t, Config{})
	f.gateway.failures = 2
	res := f.initiate(t, 0)

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingConfirmed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, f.gateway.chargeCount())
}

func TestSubmit_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t, Config{MaxRetries: 2})
	f.gateway.failures = 10
	res := f.initiate(t, 0)

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingCancelled
	}, 2*time.Second, 5*time.Millisecond)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.PaymentFailed, b.PaymentStatus)
	assert.Equal(t, 3, f.gateway.chargeCount(), "one attempt plus two retries")
	for _, id := range res.SeatIDs {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatAvailable, seat.Status)
	}
}

func TestSubmit_CompensatesWhenBookingExpiresMidCharge(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.initiate(t, 30*time.Millisecond)
	f.gateway.onCharge = func() { time.Sleep(60 * time.Millisecond) }

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return len(f.gateway.refunded()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.PaymentRefunded, b.PaymentStatus)
	// Expiry itself is the reaper's transition; the coordinator only
	// takes the money back.
	assert.Equal(t, model.BookingPending, b.BookingStatus)
	assert.Equal(t, []string{fmt.Sprintf("txn_%d", res.BookingID)}, f.gateway.refunded())
}

func TestSubmit_CompensatesWhenBookingCancelledMidCharge(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.initiate(t, 0)
	f.gateway.onCharge = func() {
		_, err := f.engine.CancelBooking(context.Background(), res.BookingID, 7)
		assert.NoError(t, err)
	}

	require.NoError(t, f.coord.Submit(context.Background(), res.BookingID, 7))

	require.Eventually(t, func() bool {
		return len(f.gateway.refunded()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.BookingCancelled, b.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, b.PaymentStatus)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	err := f.coord.Submit(ctx, 404, 7)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	res := f.initiate(t, 0)
	err = f.coord.Submit(ctx, res.BookingID, 8)
	assert.ErrorIs(t, err, engine.ErrUnauthorized)

	// Slow the charge down so the first claim is still PROCESSING
	// when the second submit arrives.
	f.gateway.onCharge = func() { time.Sleep(100 * time.Millisecond) }
	require.NoError(t, f.coord.Submit(ctx, res.BookingID, 7))
	err = f.coord.Submit(ctx, res.BookingID, 7)
	assert.ErrorIs(t, err, engine.ErrConflict)

	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingConfirmed
	}, 2*time.Second, 5*time.Millisecond)
	err = f.coord.Submit(ctx, res.BookingID, 7)
	assert.ErrorIs(t, err, engine.ErrAlreadyConfirmed)
}

func TestSubmit_TerminalAndExpiredBookings(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	res := f.initiate(t, 0)
	_, err := f.engine.CancelBooking(ctx, res.BookingID, 7)
	require.NoError(t, err)
	err = f.coord.Submit(ctx, res.BookingID, 7)
	assert.ErrorIs(t, err, engine.ErrTerminal)

	f.addShow(2, 2*time.Hour)
	seatIDs := f.addSeats(2, 5000, 1)
	res2, err := f.engine.InitiateBooking(ctx, 7, 2, seatIDs, 20*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	err = f.coord.Submit(ctx, res2.BookingID, 7)
	assert.ErrorIs(t, err, engine.ErrExpired)
	assert.Equal(t, 0, f.gateway.chargeCount())
}

func TestCancelConfirmedBookingRefundsThroughWorker(t *testing.T) {
	f := newFixture(t, Config{})
	res := f.initiate(t, 0)
	ctx := context.Background()

	require.NoError(t, f.coord.Submit(ctx, res.BookingID, 7))
	require.Eventually(t, func() bool {
		return f.booking(t, res.BookingID).BookingStatus == model.BookingConfirmed
	}, 2*time.Second, 5*time.Millisecond)

	// Show starts in two hours, well outside the 30 minute grace, so
	// the cancellation refunds.
	_, err := f.engine.CancelBooking(ctx, res.BookingID, 7)
	require.NoError(t, err)

	b := f.booking(t, res.BookingID)
	assert.Equal(t, model.BookingCancelled, b.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, b.PaymentStatus)

	require.Eventually(t, func() bool {
		return len(f.gateway.refunded()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{fmt.Sprintf("txn_%d", res.BookingID)}, f.gateway.refunded())
}

func TestStopDrainsQueuedRefunds(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < 5; i++ {
		f.coord.EnqueueRefund(uint64(i+1), fmt.Sprintf("txn_%d", i+1), 1000)
	}
	f.coord.Stop()
	assert.Len(t, f.gateway.refunded(), 5)
}
