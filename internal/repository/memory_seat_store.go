package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MemorySeatStore implements SeatStore using in-memory storage.
// It mirrors the conditional-update semantics of ShowSeatRepo and
// is used by the engine and reaper tests, and for development
// without a database.
type MemorySeatStore struct {
	mu     sync.RWMutex
	seats  map[uint64]*model.ShowSeat
	nextID uint64
}

// NewMemorySeatStore creates an empty in-memory seat store.
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{seats: make(map[uint64]*model.ShowSeat)}
}

var _ SeatStore = (*MemorySeatStore)(nil)

// Add seeds a seat row and returns its ID.  When seat.ID is zero an
// ID is assigned.  Not part of SeatStore; tests and dev seeding use
// it directly.
func (s *MemorySeatStore) Add(seat model.ShowSeat) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat.ID == 0 {
		s.nextID++
		seat.ID = s.nextID
	} else if seat.ID > s.nextID {
		s.nextID = seat.ID
	}
	if seat.Status == "" {
		seat.Status = model.SeatAvailable
	}
	now := time.Now().UTC()
	seat.CreatedAt = now
	seat.UpdatedAt = now
	cp := seat
	s.seats[seat.ID] = &cp
	return seat.ID
}

// Seat returns a copy of one row for test assertions.
func (s *MemorySeatStore) Seat(id uint64) (model.ShowSeat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[id]
	if !ok {
		return model.ShowSeat{}, false
	}
	return *seat, true
}

func (s *MemorySeatStore) SeatsByIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.ShowSeat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ShowSeat, 0, len(seatIDs))
	for _, id := range seatIDs {
		if seat, ok := s.seats[id]; ok && seat.ShowID == showID {
			out = append(out, *seat)
		}
	}
	return out, nil
}

func (s *MemorySeatStore) SeatsByShow(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ShowSeat
	for _, seat := range s.seats {
		if seat.ShowID == showID {
			out = append(out, *seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out, nil
}

func (s *MemorySeatStore) Lock(ctx context.Context, showSeatID, bookingID uint64, until, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[showSeatID]
	if !ok {
		return false, nil
	}
	if !seat.AvailableAt(now) {
		return false, nil
	}
	u := until.UTC()
	seat.Status = model.SeatLocked
	seat.HolderBookingID = &bookingID
	seat.LockedUntil = &u
	seat.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemorySeatStore) Book(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[showSeatID]
	if !ok || seat.Status != model.SeatLocked || seat.HolderBookingID == nil || *seat.HolderBookingID != bookingID {
		return false, nil
	}
	seat.Status = model.SeatBooked
	seat.LockedUntil = nil
	seat.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemorySeatStore) ReleaseLock(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[showSeatID]
	if !ok || seat.Status != model.SeatLocked || seat.HolderBookingID == nil || *seat.HolderBookingID != bookingID {
		return false, nil
	}
	s.release(seat)
	return true, nil
}

func (s *MemorySeatStore) ReleaseBooked(ctx context.Context, showSeatID, bookingID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[showSeatID]
	if !ok || seat.Status != model.SeatBooked || seat.HolderBookingID == nil || *seat.HolderBookingID != bookingID {
		return false, nil
	}
	s.release(seat)
	return true, nil
}

func (s *MemorySeatStore) ReleaseExpired(ctx context.Context, showSeatID uint64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[showSeatID]
	if !ok || !seat.LockExpired(now) {
		return false, nil
	}
	s.release(seat)
	return true, nil
}

func (s *MemorySeatStore) ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]model.ShowSeat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ShowSeat
	for _, seat := range s.seats {
		if seat.LockExpired(now) {
			out = append(out, *seat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShowID != out[j].ShowID {
			return out[i].ShowID < out[j].ShowID
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// release resets a row to AVAILABLE.  Callers hold s.mu.
func (s *MemorySeatStore) release(seat *model.ShowSeat) {
	seat.Status = model.SeatAvailable
	seat.HolderBookingID = nil
	seat.LockedUntil = nil
	seat.UpdatedAt = time.Now().UTC()
}
