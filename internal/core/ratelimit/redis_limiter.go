package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "smm_orders:ratelimit:"

// slidingWindow trims entries older than the window, then admits the attempt
// only while the remaining count is below the limit.
// KEYS[1]=key ARGV[1]=now(ms) ARGV[2]=window start(ms) ARGV[3]=window(ms) ARGV[4]=member ARGV[5]=limit
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowMs = tonumber(ARGV[3])
local limit = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, windowMs)
  return count + 1
end
return -1
`)

// RedisLimiter implements Limiter on a Redis sorted set per key, so every
// process sharing the Redis instance shares the same window.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter creates a limiter from a URL in the format
// redis://[:password@]host[:port][/database].
func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &RedisLimiter{
		client: redis.NewClient(opts),
		now:    time.Now,
	}, nil
}

// Allow runs the sliding window script atomically.
func (r *RedisLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	if err := validatePolicy(max, window); err != nil {
		return false, err
	}

	now := r.now().UnixMilli()
	windowMs := window.Milliseconds()

	res, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + key},
		now, now-windowMs, windowMs, uuid.NewString(), max).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed for %s: %w", key, err)
	}

	return res > 0, nil
}

// Ping checks if Redis is reachable.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
