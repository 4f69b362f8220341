// Package reaper hosts the background task that garbage-collects
// expired seat holds and the PENDING bookings that held them.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/lock"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// passTimeout bounds one full sweep. Passes run on their own context
// so an in-flight sweep finishes even while the service shuts down.
const passTimeout = time.Minute

// Config tunes the reaper.
type Config struct {
	Interval  time.Duration // scan period; default 5 minutes
	BatchSize int           // max rows fetched per scan; default 500
}

// Reaper periodically runs two passes: Pass A returns LOCKED seats
// whose hold lapsed to AVAILABLE, Pass B moves lapsed PENDING
// bookings to EXPIRED and releases any seats they still hold. Both
// passes use conditional updates keyed on the observed state, so
// re-running them, or racing the engine, is harmless.
type Reaper struct {
	seats    repository.SeatStore
	bookings repository.BookingStore
	locks    *lock.Registry
	logger   *zap.Logger
	cfg      Config

	kickCh  chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New builds a Reaper. Zero config fields fall back to defaults.
func New(seats repository.SeatStore, bookings repository.BookingStore, locks *lock.Registry, logger *zap.Logger, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Reaper{
		seats:    seats,
		bookings: bookings,
		locks:    locks,
		logger:   logger,
		cfg:      cfg,
		kickCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs immediately.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("reaper starting", zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))
	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for the in-flight sweep to
// complete. Safe to call more than once.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("reaper stopped")
}

// Kick requests an immediate sweep. Requests are coalesced: kicking
// while a sweep is already queued is a no-op.
func (r *Reaper) Kick() {
	select {
	case r.kickCh <- struct{}{}:
	default:
	}
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		case <-r.kickCh:
			r.sweep()
		}
	}
}

// sweep runs one full pass on a detached, bounded context.
func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	released, expired := r.RunOnce(ctx)
	if released > 0 || expired > 0 {
		r.logger.Info("reaper sweep done", zap.Int("seats_released", released), zap.Int("bookings_expired", expired))
	}
}

// RunOnce executes Pass A then Pass B once and reports how many seats
// were released and how many bookings expired.
func (r *Reaper) RunOnce(ctx context.Context) (released, expired int) {
	now := time.Now().UTC()
	released = r.releaseStaleLocks(ctx, now)
	expired = r.expirePendingBookings(ctx, now)
	return released, expired
}

// releaseStaleLocks is Pass A: every LOCKED seat whose hold lapsed
// goes back to AVAILABLE. Seats are grouped by show so each show's
// mutex is taken once per sweep, and the transition re-checks the
// predicate so a hold renewed between scan and sweep is left alone.
func (r *Reaper) releaseStaleLocks(ctx context.Context, now time.Time) int {
	seats, err := r.seats.ExpiredLocks(ctx, now, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("reaper: scanning stale locks failed", zap.Error(err))
		return 0
	}
	if len(seats) == 0 {
		return 0
	}

	byShow := make(map[uint64][]model.ShowSeat)
	for _, seat := range seats {
		byShow[seat.ShowID] = append(byShow[seat.ShowID], seat)
	}

	released := 0
	for showID, group := range byShow {
		release, err := r.locks.Acquire(ctx, showID)
		if err != nil {
			r.logger.Warn("reaper: skipping show this sweep", zap.Uint64("show_id", showID), zap.Error(err))
			continue
		}
		for _, seat := range group {
			applied, err := r.seats.ReleaseExpired(ctx, seat.ID, now)
			if err != nil {
				r.logger.Error("reaper: releasing stale lock failed",
					zap.Uint64("show_seat_id", seat.ID), zap.Error(err))
				continue
			}
			if applied {
				released++
			}
		}
		release()
	}
	return released
}

// expirePendingBookings is Pass B: lapsed PENDING bookings move to
// EXPIRED and any seats still locked by them are released. The seat
// release is conditional on the holder, making it idempotent with
// Pass A and with a concurrent cancel.
func (r *Reaper) expirePendingBookings(ctx context.Context, now time.Time) int {
	candidates, err := r.bookings.ExpiredPending(ctx, now, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("reaper: scanning expired bookings failed", zap.Error(err))
		return 0
	}

	expired := 0
	for _, cand := range candidates {
		release, err := r.locks.Acquire(ctx, cand.ShowID)
		if err != nil {
			r.logger.Warn("reaper: skipping booking this sweep", zap.Uint64("booking_id", cand.ID), zap.Error(err))
			continue
		}
		// Re-read under the mutex: the scan row may be stale and the
		// scan does not carry seat rows.
		b, err := r.bookings.Get(ctx, cand.ID)
		if err != nil {
			release()
			r.logger.Error("reaper: reloading booking failed", zap.Uint64("booking_id", cand.ID), zap.Error(err))
			continue
		}
		applied, err := r.bookings.ExpirePending(ctx, b.ID, now)
		if err != nil {
			release()
			r.logger.Error("reaper: expiring booking failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
			continue
		}
		if applied {
			expired++
			for _, seat := range b.Seats {
				if _, err := r.seats.ReleaseLock(ctx, seat.ShowSeatID, b.ID); err != nil {
					r.logger.Error("reaper: releasing booked-by-expired seat failed",
						zap.Uint64("show_seat_id", seat.ShowSeatID),
						zap.Uint64("booking_id", b.ID),
						zap.Error(err))
				}
			}
			r.logger.Info("booking expired",
				zap.Uint64("booking_id", b.ID),
				zap.Uint64("show_id", b.ShowID),
				zap.Int("seats", len(b.Seats)))
		}
		release()
	}
	return expired
}
