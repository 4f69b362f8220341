package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// showCatalog is a fixed in-memory ShowStore for tests.
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

func (c *showCatalog) put(s model.Show) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shows[s.ID] = s
}

// recordingRefunder captures refund enqueues.
type recordingRefunder struct {
	mu       sync.Mutex
	bookings []uint64
}

func (r *recordingRefunder) EnqueueRefund(bookingID uint64, paymentRef string, amountCents uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, bookingID)
}

func (r *recordingRefunder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

type fixture struct {
	engine   *Engine
	seats    *repository.MemorySeatStore
	bookings *repository.MemoryBookingStore
	shows    *showCatalog
	refunds  *recordingRefunder
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		seats:    repository.NewMemorySeatStore(),
		bookings: repository.NewMemoryBookingStore(),
		shows:    &showCatalog{shows: make(map[uint64]model.Show)},
		refunds:  &recordingRefunder{},
	}
	f.engine = New(f.seats, f.bookings, f.shows, lock.NewRegistry(), zap.NewNop(), cfg)
	f.engine.SetRefunder(f.refunds)
	return f
}

// addShow registers a SCHEDULED show starting startsIn from now.
func (f *fixture) addShow(id uint64, startsIn time.Duration) {
	now := time.Now().UTC()
	f.shows.put(model.Show{
		ID:       id,
		MovieID:  1,
		ScreenID: 1,
		StartsAt: now.Add(startsIn),
		EndsAt:   now.Add(startsIn + 2*time.Hour),
		Status:   model.ShowScheduled,
	})
}

// addSeats seeds n AVAILABLE seats for the show and returns their IDs.
func (f *fixture) addSeats(showID uint64, priceCents uint32, n int) []uint64 {
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id := f.seats.Add(model.ShowSeat{
			ShowID:     showID,
			SeatID:     uint64(i + 1),
			Status:     model.SeatAvailable,
			PriceCents: priceCents,
		})
		ids = append(ids, id)
	}
	return ids
}

func TestInitiateBooking_HappyPathAndConfirm(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 10000, 3)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs[:2], 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(20000), res.TotalAmountCents)
	assert.Len(t, res.SeatIDs, 2)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), res.ExpiresAt, 5*time.Second)

	for _, id := range seatIDs[:2] {
		seat, ok := f.seats.Seat(id)
		require.True(t, ok)
		assert.Equal(t, model.SeatLocked, seat.Status)
		require.NotNil(t, seat.HolderBookingID)
		assert.Equal(t, res.BookingID, *seat.HolderBookingID)
		require.NotNil(t, seat.LockedUntil)
	}
	third, _ := f.seats.Seat(seatIDs[2])
	assert.Equal(t, model.SeatAvailable, third.Status)

	b, err := f.bookings.Get(ctx, res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.BookingStatus)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)

	confirmed, err := f.engine.ConfirmBooking(ctx, res.BookingID, "tx_abc")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.BookingStatus)
	assert.Equal(t, model.PaymentCompleted, confirmed.PaymentStatus)
	require.NotNil(t, confirmed.PaymentRef)
	assert.Equal(t, "tx_abc", *confirmed.PaymentRef)

	for _, id := range seatIDs[:2] {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatBooked, seat.Status)
		assert.Nil(t, seat.LockedUntil)
	}
}

func TestInitiateBooking_Validation(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, time.Hour)
	seatIDs := f.addSeats(1, 100, 2)
	ctx := context.Background()

	_, err := f.engine.InitiateBooking(ctx, 7, 1, nil, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.InitiateBooking(ctx, 7, 1, []uint64{seatIDs[0], seatIDs[0]}, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInitiateBooking_UnknownShowAndSeat(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, time.Hour)
	seatIDs := f.addSeats(1, 100, 1)
	ctx := context.Background()

	_, err := f.engine.InitiateBooking(ctx, 7, 99, seatIDs, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.InitiateBooking(ctx, 7, 1, []uint64{seatIDs[0], 424242}, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInitiateBooking_ShowNotOpen(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	// Already started.
	f.addShow(1, -time.Minute)
	started := f.addSeats(1, 100, 1)
	_, err := f.engine.InitiateBooking(ctx, 7, 1, started, 0)
	assert.ErrorIs(t, err, ErrConflict)

	// Cancelled.
	f.addShow(2, time.Hour)
	s, _ := f.shows.GetByID(ctx, 2)
	cancelled := *s
	cancelled.Status = model.ShowCancelled
	f.shows.put(cancelled)
	seats := f.addSeats(2, 100, 1)
	_, err = f.engine.InitiateBooking(ctx, 7, 2, seats, 0)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInitiateBooking_SecondAttemptLoses(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 3)
	ctx := context.Background()

	_, err := f.engine.InitiateBooking(ctx, 7, 1, []uint64{seatIDs[0]}, 0)
	require.NoError(t, err)

	_, err = f.engine.InitiateBooking(ctx, 8, 1, []uint64{seatIDs[0], seatIDs[2]}, 0)
	require.ErrorIs(t, err, ErrSeatUnavailable)
	var unavailable *SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uint64{seatIDs[0]}, unavailable.FailedSeatIDs)

	// The free seat in the losing request is untouched and no
	// booking was created for the loser.
	free, _ := f.seats.Seat(seatIDs[2])
	assert.Equal(t, model.SeatAvailable, free.Status)
	loserBookings, err := f.bookings.ListByUser(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, loserBookings)
}

func TestConfirmBooking_AfterExpiryAndStaleReclaim(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 1)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 30*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	// Confirm after the hold lapsed reports expiry without mutating.
	_, err = f.engine.ConfirmBooking(ctx, res.BookingID, "tx_late")
	require.ErrorIs(t, err, ErrExpired)
	b, err := f.bookings.Get(ctx, res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.BookingStatus, "expiry transition belongs to the reaper")

	// The stale lock is reclaimable in place by a new booking.
	res2, err := f.engine.InitiateBooking(ctx, 9, 1, seatIDs, 0)
	require.NoError(t, err)
	seat, _ := f.seats.Seat(seatIDs[0])
	require.NotNil(t, seat.HolderBookingID)
	assert.Equal(t, res2.BookingID, *seat.HolderBookingID)
}

func TestInitiateBooking_ContentionSingleWinner(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 1)

	const attempts = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []uint64
		failures  int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(user uint64) {
			defer wg.Done()
			res, err := f.engine.InitiateBooking(context.Background(), user, 1, seatIDs, 0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes = append(successes, res.BookingID)
				return
			}
			if assert.True(t, errorIsAny(err, ErrSeatUnavailable, ErrConflict), "unexpected error: %v", err) {
				failures++
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	require.Len(t, successes, 1, "exactly one attempt must win the seat")
	assert.Equal(t, attempts-1, failures)
	seat, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatLocked, seat.Status)
	require.NotNil(t, seat.HolderBookingID)
	assert.Equal(t, successes[0], *seat.HolderBookingID)
}

// lockFailStore makes the conditional lock on one seat fail, standing
// in for a competing writer in another process.
type lockFailStore struct {
	*repository.MemorySeatStore
	failID uint64
}

func (s *lockFailStore) Lock(ctx context.Context, showSeatID, bookingID uint64, until, now time.Time) (bool, error) {
	if showSeatID == s.failID {
		return false, nil
	}
	return s.MemorySeatStore.Lock(ctx, showSeatID, bookingID, until, now)
}

func TestInitiateBooking_RollbackOnLostLockRace(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 2)
	ctx := context.Background()

	flaky := &lockFailStore{MemorySeatStore: f.seats, failID: seatIDs[1]}
	eng := New(flaky, f.bookings, f.shows, lock.NewRegistry(), zap.NewNop(), Config{})

	_, err := eng.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.ErrorIs(t, err, ErrConflict)

	// The first seat was locked and must be rolled back; the booking
	// row must be parked in CANCELLED so no pending hold survives.
	first, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatAvailable, first.Status)
	assert.Nil(t, first.HolderBookingID)
	bookings, err := f.bookings.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, model.BookingCancelled, bookings[0].BookingStatus)
}

func TestCancelBooking_PendingRoundTrip(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 2)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.NoError(t, err)

	b, err := f.engine.CancelBooking(ctx, res.BookingID, 7)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.BookingStatus)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus, "cancelling an unpaid booking must not touch payment state")

	for _, id := range seatIDs {
		seat, _ := f.seats.Seat(id)
		assert.Equal(t, model.SeatAvailable, seat.Status)
		assert.Nil(t, seat.HolderBookingID)
		assert.Nil(t, seat.LockedUntil)
	}
	assert.Zero(t, f.refunds.count())
}

func TestCancelBooking_Unauthorized(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 1)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.NoError(t, err)

	_, err = f.engine.CancelBooking(ctx, res.BookingID, 8)
	assert.ErrorIs(t, err, ErrUnauthorized)

	seat, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatLocked, seat.Status)
}

func TestCancelBooking_ConfirmedRefundsOutsideGrace(t *testing.T) {
	f := newFixture(Config{CancelGrace: 30 * time.Minute})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 1)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, res.BookingID, "tx_1")
	require.NoError(t, err)

	b, err := f.engine.CancelBooking(ctx, res.BookingID, 7)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.BookingStatus)
	assert.Equal(t, model.PaymentRefunded, b.PaymentStatus)

	seat, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatAvailable, seat.Status)
	assert.Equal(t, 1, f.refunds.count())
}

func TestCancelBooking_ConfirmedInsideGrace(t *testing.T) {
	f := newFixture(Config{CancelGrace: 30 * time.Minute})
	f.addShow(1, 20*time.Minute) // closer than the grace window
	seatIDs := f.addSeats(1, 100, 1)
	ctx := context.Background()

	res, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, res.BookingID, "tx_1")
	require.NoError(t, err)

	_, err = f.engine.CancelBooking(ctx, res.BookingID, 7)
	assert.ErrorIs(t, err, ErrNotCancellable)

	seat, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatBooked, seat.Status, "seats stay booked when cancellation is refused")
	assert.Zero(t, f.refunds.count())
}

func TestConfirmBooking_StateErrors(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 2)
	ctx := context.Background()

	_, err := f.engine.ConfirmBooking(ctx, 12345, "tx")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.engine.InitiateBooking(ctx, 7, 1, []uint64{seatIDs[0]}, 0)
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, res.BookingID, "tx_1")
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, res.BookingID, "tx_2")
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	res2, err := f.engine.InitiateBooking(ctx, 7, 1, []uint64{seatIDs[1]}, 0)
	require.NoError(t, err)
	_, err = f.engine.CancelBooking(ctx, res2.BookingID, 7)
	require.NoError(t, err)
	_, err = f.engine.ConfirmBooking(ctx, res2.BookingID, "tx_3")
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = f.engine.CancelBooking(ctx, res2.BookingID, 7)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestInitiateBooking_CancelledContextHasNoEffect(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	seatIDs := f.addSeats(1, 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.InitiateBooking(ctx, 7, 1, seatIDs, 0)
	require.ErrorIs(t, err, ErrTimeout)

	seat, _ := f.seats.Seat(seatIDs[0])
	assert.Equal(t, model.SeatAvailable, seat.Status)
	bookings, err := f.bookings.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestAvailableSeats_InterpretsStaleLocksWithoutMutating(t *testing.T) {
	f := newFixture(Config{})
	f.addShow(1, 2*time.Hour)
	ids := f.addSeats(1, 10000, 4)
	ctx := context.Background()
	now := time.Now().UTC()

	// ids[0] stays AVAILABLE; ids[1] carries a live hold, ids[2] a
	// lapsed one; ids[3] is BOOKED.
	applied, err := f.seats.Lock(ctx, ids[1], 101, now.Add(10*time.Minute), now)
	require.NoError(t, err)
	require.True(t, applied)
	applied, err = f.seats.Lock(ctx, ids[2], 102, now.Add(-time.Minute), now)
	require.NoError(t, err)
	require.True(t, applied)
	_, err = f.seats.Lock(ctx, ids[3], 103, now.Add(10*time.Minute), now)
	require.NoError(t, err)
	_, err = f.seats.Book(ctx, ids[3], 103)
	require.NoError(t, err)

	seats, err := f.engine.AvailableSeats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	byID := make(map[uint64]model.ShowSeat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	assert.Equal(t, model.SeatAvailable, byID[ids[0]].Status)
	assert.Equal(t, model.SeatLocked, byID[ids[1]].Status)
	assert.Equal(t, model.SeatAvailable, byID[ids[2]].Status, "lapsed hold reads as available")
	assert.Nil(t, byID[ids[2]].HolderBookingID)
	assert.Equal(t, model.SeatBooked, byID[ids[3]].Status)

	// The read must not reclaim the lapsed lock in the store.
	raw, _ := f.seats.Seat(ids[2])
	assert.Equal(t, model.SeatLocked, raw.Status)

	total, booked, err := f.engine.Occupancy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, booked)

	_, err = f.engine.AvailableSeats(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func errorIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
