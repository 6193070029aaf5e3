package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/internhub/internal/cache"
)

// RateStore counts requests per key in fixed windows.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

const memorySweepInterval = time.Minute

// MemoryRateStore keeps counters in process memory. Expired windows are
// swept on access, at most once per sweep interval.
type MemoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	now       func() time.Time
	nextSweep time.Time
}

type rateWindow struct {
	count int
	ends  time.Time
}

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() *MemoryRateStore {
	return NewMemoryRateStoreWithClock(time.Now)
}

// NewMemoryRateStoreWithClock constructs an in-memory rate store on clock.
func NewMemoryRateStoreWithClock(clock func() time.Time) *MemoryRateStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateStore{windows: make(map[string]rateWindow), now: clock}
}

// Increment records a hit for key and returns the count in the current window.
func (s *MemoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	current, ok := s.windows[key]
	if !ok || !now.Before(current.ends) {
		current = rateWindow{ends: now.Add(window)}
	}
	current.count++
	s.windows[key] = current

	return current.count, current.ends.Sub(now), nil
}

// Len reports how many keys are tracked.
func (s *MemoryRateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryRateStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for key, w := range s.windows {
		if !now.Before(w.ends) {
			delete(s.windows, key)
		}
	}
	s.nextSweep = now.Add(memorySweepInterval)
}

// cacheRateStore counts hits in a shared cache.Store.
type cacheRateStore struct {
	store cache.Store
}

// NewCacheRateStore counts requests in a shared cache so limits hold across
// instances when Redis or the database backs the store.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &cacheRateStore{store: store}
}

func (s *cacheRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
