// Package ratelimit enforces "at most N identical requests per rolling window"
// against a counter store shared by every worker issuing provider calls.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPolicy is returned when max or window is not positive.
var ErrInvalidPolicy = errors.New("rate limit policy must have positive max and window")

// Limiter records an attempt for key and reports whether it fits in the window.
// A rejected attempt is not recorded.
type Limiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

func validatePolicy(max int, window time.Duration) error {
	if max < 1 || window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}
