package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// MemoryBookingStore implements BookingStore using in-memory
// storage, mirroring the conditional-update semantics of
// BookingRepo for tests and development.
type MemoryBookingStore struct {
	mu       sync.RWMutex
	bookings map[uint64]*model.Booking
	nextID   uint64
}

// NewMemoryBookingStore creates an empty in-memory booking store.
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[uint64]*model.Booking)}
}

var _ BookingStore = (*MemoryBookingStore)(nil)

// clone copies a booking including its seats so callers never
// share memory with the store.
func cloneBooking(b *model.Booking) *model.Booking {
	cp := *b
	if b.Seats != nil {
		cp.Seats = make([]model.BookingSeat, len(b.Seats))
		copy(cp.Seats, b.Seats)
	}
	return &cp
}

func (s *MemoryBookingStore) Insert(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	for i := range b.Seats {
		b.Seats[i].ID = uint64(i + 1)
		b.Seats[i].BookingID = b.ID
		b.Seats[i].CreatedAt = now
	}
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (s *MemoryBookingStore) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryBookingStore) UpdateStates(ctx context.Context, id uint64, expect, to model.BookingStatus, pay model.PaymentStatus, payRef *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.BookingStatus != expect {
		return false, nil
	}
	b.BookingStatus = to
	if pay != "" {
		b.PaymentStatus = pay
	}
	if payRef != nil {
		ref := *payRef
		b.PaymentRef = &ref
	}
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryBookingStore) UpdatePaymentStatus(ctx context.Context, id uint64, expect, to model.PaymentStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.PaymentStatus != expect {
		return false, nil
	}
	b.PaymentStatus = to
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryBookingStore) ExpirePending(ctx context.Context, id uint64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.BookingStatus != model.BookingPending || b.ExpiresAt.After(now) {
		return false, nil
	}
	b.BookingStatus = model.BookingExpired
	b.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryBookingStore) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.BookingStatus == model.BookingPending && !b.ExpiresAt.After(now) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryBookingStore) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			cp := *cloneBooking(b)
			cp.Seats = nil
			out = append(out, cp)
		}
	}
	// Newest first; IDs grow monotonically so they break timestamp ties.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryBookingStore) StatsByUser(ctx context.Context, userID uint64) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count, total uint64
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		count++
		if b.BookingStatus == model.BookingConfirmed {
			total += uint64(b.TotalAmountCents)
		}
	}
	return count, total, nil
}

func (s *MemoryBookingStore) RevenueByShow(ctx context.Context, showID uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, b := range s.bookings {
		if b.ShowID == showID && b.BookingStatus == model.BookingConfirmed {
			total += uint64(b.TotalAmountCents)
		}
	}
	return total, nil
}
