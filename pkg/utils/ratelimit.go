package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between consecutive calls to one
// logical endpoint. Wait blocks the caller for the remainder of the interval
// instead of queuing asynchronously.
type RateLimiter struct {
	interval time.Duration
	last     map[string]time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a limiter that allows perMinute calls per minute to
// each endpoint.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		last:     make(map[string]time.Time),
	}
}

// Wait blocks until the endpoint's minimum inter-call interval has elapsed or
// the context is cancelled. The reservation is taken before sleeping so
// concurrent callers to the same endpoint serialize correctly.
func (rl *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	rl.mu.Lock()
	now := time.Now()
	next := rl.last[endpoint].Add(rl.interval)
	if next.Before(now) {
		next = now
	}
	rl.last[endpoint] = next
	rl.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Interval returns the enforced minimum gap between calls.
func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}
