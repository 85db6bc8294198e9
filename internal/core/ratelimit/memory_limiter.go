package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter implements Limiter inside one process. Keys expire from the
// backing cache once their window has passed.
type MemoryLimiter struct {
	mu    sync.Mutex
	store *gocache.Cache
	now   func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		store: gocache.New(time.Minute, 5*time.Minute),
		now:   time.Now,
	}
}

// Allow records the attempt when fewer than max attempts fall inside the window.
func (m *MemoryLimiter) Allow(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	if err := validatePolicy(max, window); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)

	var hits []time.Time
	if cached, ok := m.store.Get(key); ok {
		hits = cached.([]time.Time)
	}

	kept := make([]time.Time, 0, len(hits)+1)
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= max {
		m.store.Set(key, kept, window)
		return false, nil
	}

	kept = append(kept, now)
	m.store.Set(key, kept, window)
	return true, nil
}
