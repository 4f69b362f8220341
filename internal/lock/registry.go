// Package lock provides per-show mutual exclusion for the booking engine.
// Each show gets its own mutex so bookings for different shows never
// contend with each other. Entries are reference counted and removed as
// soon as the last holder releases, keeping the map bounded by the number
// of shows with in-flight operations rather than by total shows.
package lock

import (
	"context"
	"sync"
)

// entry is one show's mutex. The channel holds a single token; owning
// the token means owning the lock. A channel is used instead of
// sync.Mutex so acquisition can be abandoned when the context ends.
type entry struct {
	ch   chan struct{}
	refs int
}

// Registry hands out per-show locks on demand.
type Registry struct {
	mu      sync.Mutex
	entries map[uint64]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]*entry)}
}

// Acquire blocks until the show's mutex is held or ctx is done. On
// success it returns a release function that must be called exactly
// once; calling it more than once is a no-op.
func (r *Registry) Acquire(ctx context.Context, showID uint64) (func(), error) {
	r.mu.Lock()
	e, ok := r.entries[showID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		r.entries[showID] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.ch
				r.put(showID, e)
			})
		}
		return release, nil
	case <-ctx.Done():
		r.put(showID, e)
		return nil, ctx.Err()
	}
}

// put drops one reference and deletes the entry when nobody holds or
// waits for it anymore.
func (r *Registry) put(showID uint64, e *entry) {
	r.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, showID)
	}
	r.mu.Unlock()
}

// Len reports how many shows currently have a live lock entry. It
// exists for observability and tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
