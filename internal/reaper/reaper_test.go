package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

type fixture struct {
	reaper   *Reaper
	seats    *repository.MemorySeatStore
	bookings *repository.MemoryBookingStore
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		seats:    repository.NewMemorySeatStore(),
		bookings: repository.NewMemoryBookingStore(),
	}
	f.reaper = New(f.seats, f.bookings, lock.NewRegistry(), zap.NewNop(), cfg)
	return f
}

// seedExpiredBooking creates a PENDING booking whose hold lapsed ago
// in the past, with one seat still LOCKED by it. Returns the booking
// and seat IDs.
func (f *fixture) seedExpiredBooking(t *testing.T, showID uint64, ago time.Duration) (uint64, uint64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	seatID := f.seats.Add(model.ShowSeat{ShowID: showID, SeatID: 1, Status: model.SeatAvailable, PriceCents: 100})
	b := &model.Booking{
		UserID:           7,
		ShowID:           showID,
		BookingStatus:    model.BookingPending,
		PaymentStatus:    model.PaymentPending,
		TotalAmountCents: 100,
		ExpiresAt:        now.Add(-ago),
		Seats:            []model.BookingSeat{{ShowSeatID: seatID, PriceCents: 100}},
	}
	require.NoError(t, f.bookings.Insert(ctx, b))

	applied, err := f.seats.Lock(ctx, seatID, b.ID, now.Add(-ago), now)
	require.NoError(t, err)
	require.True(t, applied)
	return b.ID, seatID
}

func TestRunOnce_ReclaimsExpiredBookingAndSeat(t *testing.T) {
	f := newFixture(Config{})
	bookingID, seatID := f.seedExpiredBooking(t, 1, time.Minute)

	released, expired := f.reaper.RunOnce(context.Background())
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, expired)

	seat, ok := f.seats.Seat(seatID)
	require.True(t, ok)
	assert.Equal(t, model.SeatAvailable, seat.Status)
	assert.Nil(t, seat.HolderBookingID)
	assert.Nil(t, seat.LockedUntil)

	b, err := f.bookings.Get(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingExpired, b.BookingStatus)
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	f := newFixture(Config{})
	bookingID, seatID := f.seedExpiredBooking(t, 1, time.Minute)

	f.reaper.RunOnce(context.Background())
	released, expired := f.reaper.RunOnce(context.Background())
	assert.Zero(t, released, "second sweep must find nothing to release")
	assert.Zero(t, expired)

	seat, _ := f.seats.Seat(seatID)
	assert.Equal(t, model.SeatAvailable, seat.Status)
	b, _ := f.bookings.Get(context.Background(), bookingID)
	assert.Equal(t, model.BookingExpired, b.BookingStatus)
}

func TestRunOnce_LeavesLiveHoldsAlone(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()
	now := time.Now().UTC()

	seatID := f.seats.Add(model.ShowSeat{ShowID: 1, SeatID: 1, Status: model.SeatAvailable, PriceCents: 100})
	b := &model.Booking{
		UserID:        7,
		ShowID:        1,
		BookingStatus: model.BookingPending,
		PaymentStatus: model.PaymentPending,
		ExpiresAt:     now.Add(10 * time.Minute),
		Seats:         []model.BookingSeat{{ShowSeatID: seatID, PriceCents: 100}},
	}
	require.NoError(t, f.bookings.Insert(ctx, b))
	applied, err := f.seats.Lock(ctx, seatID, b.ID, now.Add(10*time.Minute), now)
	require.NoError(t, err)
	require.True(t, applied)

	released, expired := f.reaper.RunOnce(ctx)
	assert.Zero(t, released)
	assert.Zero(t, expired)

	seat, _ := f.seats.Seat(seatID)
	assert.Equal(t, model.SeatLocked, seat.Status)
	got, _ := f.bookings.Get(ctx, b.ID)
	assert.Equal(t, model.BookingPending, got.BookingStatus)
}

func TestRunOnce_ReleasesOrphanedStaleLock(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()
	now := time.Now().UTC()

	// A stale lock with no matching PENDING booking (for example a
	// crash between rollback steps) is still reclaimed by Pass A.
	seatID := f.seats.Add(model.ShowSeat{ShowID: 1, SeatID: 1, Status: model.SeatAvailable, PriceCents: 100})
	applied, err := f.seats.Lock(ctx, seatID, 999, now.Add(-time.Minute), now)
	require.NoError(t, err)
	require.True(t, applied)

	released, expired := f.reaper.RunOnce(ctx)
	assert.Equal(t, 1, released)
	assert.Zero(t, expired)

	seat, _ := f.seats.Seat(seatID)
	assert.Equal(t, model.SeatAvailable, seat.Status)
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	f := newFixture(Config{Interval: time.Hour}) // only the startup sweep can fire
	bookingID, seatID := f.seedExpiredBooking(t, 1, time.Minute)

	require.NoError(t, f.reaper.Start(context.Background()))
	defer f.reaper.Stop()

	assert.Eventually(t, func() bool {
		seat, _ := f.seats.Seat(seatID)
		b, err := f.bookings.Get(context.Background(), bookingID)
		return err == nil && seat.Status == model.SeatAvailable && b.BookingStatus == model.BookingExpired
	}, 2*time.Second, 10*time.Millisecond)

	f.reaper.Stop()
	f.reaper.Stop() // repeated Stop is safe
}

func TestKickWakesTheLoop(t *testing.T) {
	f := newFixture(Config{Interval: time.Hour})
	require.NoError(t, f.reaper.Start(context.Background()))
	defer f.reaper.Stop()

	// Seed after startup so only a kick can reclaim it before the
	// hour-long ticker fires.
	bookingID, seatID := f.seedExpiredBooking(t, 1, time.Minute)
	f.reaper.Kick()

	assert.Eventually(t, func() bool {
		seat, _ := f.seats.Seat(seatID)
		b, err := f.bookings.Get(context.Background(), bookingID)
		return err == nil && seat.Status == model.SeatAvailable && b.BookingStatus == model.BookingExpired
	}, 2*time.Second, 10*time.Millisecond)
}
