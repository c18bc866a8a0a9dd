// Package pacing implements the politeness delay between item fetches.
package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces the item attempts of one worker using a token bucket. The
// bucket holds a single token and starts full, so the first item of a shard
// is never delayed and later items wait out the configured interval.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing one item per delay interval. A zero or
// negative delay disables pacing.
func New(delay time.Duration) *Limiter {
	if delay <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next item may be attempted, respecting the context.
// Safe on a nil or disabled Limiter.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	return nil
}
