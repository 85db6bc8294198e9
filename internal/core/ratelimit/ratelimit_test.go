package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedisLimiter(t *testing.T, clock *fakeClock) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)

	limiter, err := NewRedisLimiter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { limiter.Close() })

	limiter.now = clock.Now
	return limiter
}

func newMemoryLimiter(clock *fakeClock) *MemoryLimiter {
	limiter := NewMemoryLimiter()
	limiter.now = clock.Now
	return limiter
}

// exerciseWindow checks the rolling window semantics shared by both implementations.
func exerciseWindow(t *testing.T, limiter Limiter, clock *fakeClock) {
	ctx := context.Background()
	window := 15 * time.Second

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "fp-1", 2, window)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d should be accepted", i+1)
	}

	ok, err := limiter.Allow(ctx, "fp-1", 2, window)
	require.NoError(t, err)
	assert.False(t, ok, "third attempt inside the window must be rejected")

	// Other fingerprints have their own budget.
	ok, err = limiter.Allow(ctx, "fp-2", 2, window)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(10 * time.Second)
	ok, err = limiter.Allow(ctx, "fp-1", 2, window)
	require.NoError(t, err)
	assert.False(t, ok, "still inside the rolling window")

	clock.Advance(6 * time.Second)
	ok, err = limiter.Allow(ctx, "fp-1", 2, window)
	require.NoError(t, err)
	assert.True(t, ok, "first two attempts have decayed")
}

func TestRedisLimiter_Window(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	exerciseWindow(t, newRedisLimiter(t, clock), clock)
}

func TestMemoryLimiter_Window(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	exerciseWindow(t, newMemoryLimiter(clock), clock)
}

// TestLimiters_Concurrent verifies that concurrent workers never exceed the budget.
func TestLimiters_Concurrent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	limiters := map[string]Limiter{
		"redis":  newRedisLimiter(t, clock),
		"memory": newMemoryLimiter(clock),
	}

	for name, limiter := range limiters {
		t.Run(name, func(t *testing.T) {
			var accepted atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := limiter.Allow(context.Background(), "shared", 2, 15*time.Second)
					assert.NoError(t, err)
					if ok {
						accepted.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(2), accepted.Load())
		})
	}
}

func TestLimiters_InvalidPolicy(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	limiter := newMemoryLimiter(clock)

	_, err := limiter.Allow(context.Background(), "fp", 0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = limiter.Allow(context.Background(), "fp", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRedisLimiter_Ping(t *testing.T) {
	limiter := newRedisLimiter(t, &fakeClock{now: time.Now()})
	assert.NoError(t, limiter.Ping(context.Background()))
}

func TestRedisLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisLimiter("invalid://url")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
