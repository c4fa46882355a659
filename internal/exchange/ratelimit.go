package exchange

import (
	"context"
	"sync"
	"time"
)

// MinIntervalLimiter enforces a minimum delay between the start of
// consecutive signed HTTP requests to a throttled venue (spec §4.B,
// "min inter-request delay"). Simplified from the teacher's multi-bucket
// internal/exchange/ratelimit.go TokenBucket: the spec's rate limit is a
// single scalar, not a per-category budget, so one timestamp suffices.
type MinIntervalLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     time.Time
}

// NewMinIntervalLimiter returns a limiter enforcing minDelay between
// requests. minDelay <= 0 disables throttling.
func NewMinIntervalLimiter(minDelay time.Duration) *MinIntervalLimiter {
	return &MinIntervalLimiter{minDelay: minDelay}
}

// Wait blocks until it is safe to issue the next request, or ctx is done.
func (l *MinIntervalLimiter) Wait(ctx context.Context) error {
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(l.last)
	var sleep time.Duration
	if elapsed < l.minDelay {
		sleep = l.minDelay - elapsed
	}
	l.last = now.Add(sleep)
	l.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
