package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// AvailableSeats returns every seat of the show with lock expiry
// already interpreted: a LOCKED seat whose hold lapsed is reported
// AVAILABLE with no holder. Nothing is written and no show mutex is
// taken; reclaiming lapsed locks stays with bookings and the reaper.
func (e *Engine) AvailableSeats(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	if _, err := e.shows.GetByID(ctx, showID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("show %d: %w", showID, ErrNotFound)
		}
		return nil, asTimeout(err)
	}
	seats, err := e.seats.SeatsByShow(ctx, showID)
	if err != nil {
		return nil, asTimeout(err)
	}

	now := time.Now().UTC()
	for i := range seats {
		if seats[i].Status == model.SeatLocked && seats[i].LockExpired(now) {
			seats[i].Status = model.SeatAvailable
			seats[i].HolderBookingID = nil
			seats[i].LockedUntil = nil
		}
	}
	return seats, nil
}

// Occupancy reports how many of the show's seats exist and how many
// are BOOKED. The read is unguarded, so a transition in flight may
// briefly under- or over-count by a seat.
func (e *Engine) Occupancy(ctx context.Context, showID uint64) (total, booked int, err error) {
	seats, err := e.AvailableSeats(ctx, showID)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range seats {
		if s.Status == model.SeatBooked {
			booked++
		}
	}
	return len(seats), booked, nil
}
