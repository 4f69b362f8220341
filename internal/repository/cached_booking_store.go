package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

const (
	bookingKeyPrefix  = "booking:"
	userListKeyPrefix = "user_bookings:"
)

// CachedBookingStore wraps a BookingStore with a Redis read-through
// cache for Get and ListByUser.  Every write invalidates the
// affected keys on both sides of the underlying write, so readers
// can never observe a cached value older than the TTL after a
// transition.  All booking writes in the application flow through
// this decorator.
//
// Cache failures are deliberately silent: a dead Redis degrades the
// store to its underlying implementation.
type CachedBookingStore struct {
	store BookingStore
	cache *redis.Client
	ttl   time.Duration
}

// NewCachedBookingStore decorates store with a Redis cache.  A nil
// client disables caching entirely and returns the store unchanged.
func NewCachedBookingStore(store BookingStore, cache *redis.Client, ttl time.Duration) BookingStore {
	if cache == nil {
		return store
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedBookingStore{store: store, cache: cache, ttl: ttl}
}

func bookingKey(id uint64) string      { return fmt.Sprintf("%s%d", bookingKeyPrefix, id) }
func userListKey(userID uint64) string { return fmt.Sprintf("%s%d", userListKeyPrefix, userID) }

func (c *CachedBookingStore) Insert(ctx context.Context, b *model.Booking) error {
	if err := c.store.Insert(ctx, b); err != nil {
		return err
	}
	c.cache.Del(ctx, userListKey(b.UserID))
	return nil
}

func (c *CachedBookingStore) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	key := bookingKey(id)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil && cached != "" {
		var b model.Booking
		if err := json.Unmarshal([]byte(cached), &b); err == nil {
			return &b, nil
		}
	}
	b, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(b); err == nil {
		c.cache.Set(ctx, key, data, c.ttl)
	}
	return b, nil
}

func (c *CachedBookingStore) UpdateStates(ctx context.Context, id uint64, expect, to model.BookingStatus, pay model.PaymentStatus, payRef *string) (bool, error) {
	c.invalidate(ctx, id)
	applied, err := c.store.UpdateStates(ctx, id, expect, to, pay, payRef)
	if err != nil {
		return false, err
	}
	if applied {
		c.invalidate(ctx, id)
	}
	return applied, nil
}

func (c *CachedBookingStore) UpdatePaymentStatus(ctx context.Context, id uint64, expect, to model.PaymentStatus) (bool, error) {
	c.invalidate(ctx, id)
	applied, err := c.store.UpdatePaymentStatus(ctx, id, expect, to)
	if err != nil {
		return false, err
	}
	if applied {
		c.invalidate(ctx, id)
	}
	return applied, nil
}

func (c *CachedBookingStore) ExpirePending(ctx context.Context, id uint64, now time.Time) (bool, error) {
	c.invalidate(ctx, id)
	applied, err := c.store.ExpirePending(ctx, id, now)
	if err != nil {
		return false, err
	}
	if applied {
		c.invalidate(ctx, id)
	}
	return applied, nil
}

func (c *CachedBookingStore) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	return c.store.ExpiredPending(ctx, now, limit)
}

func (c *CachedBookingStore) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	key := userListKey(userID)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil && cached != "" {
		var list []model.Booking
		if err := json.Unmarshal([]byte(cached), &list); err == nil {
			return list, nil
		}
	}
	list, err := c.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		c.cache.Set(ctx, key, data, c.ttl)
	}
	return list, nil
}

func (c *CachedBookingStore) StatsByUser(ctx context.Context, userID uint64) (uint64, uint64, error) {
	return c.store.StatsByUser(ctx, userID)
}

func (c *CachedBookingStore) RevenueByShow(ctx context.Context, showID uint64) (uint64, error) {
	return c.store.RevenueByShow(ctx, showID)
}

// invalidate drops the booking's detail key and its owner's list
// key.  The owner is resolved from the cached copy when present to
// avoid an extra DB read; otherwise from the underlying store.
func (c *CachedBookingStore) invalidate(ctx context.Context, id uint64) {
	key := bookingKey(id)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil && cached != "" {
		var b model.Booking
		if err := json.Unmarshal([]byte(cached), &b); err == nil {
			c.cache.Del(ctx, key, userListKey(b.UserID))
			return
		}
	}
	c.cache.Del(ctx, key)
	if b, err := c.store.Get(ctx, id); err == nil {
		c.cache.Del(ctx, userListKey(b.UserID))
	}
}
