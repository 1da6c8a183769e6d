package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum spacing between outbound requests. A single
// instance is shared by every upstream call in the process.
type Throttle struct {
	limiter *rate.Limiter
	observe func(time.Duration)
}

// NewThrottle returns a throttle granting at most one acquisition per minInterval.
// A zero interval disables throttling.
func NewThrottle(minInterval time.Duration) *Throttle {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// OnWait registers a callback receiving how long each Acquire was held.
func (t *Throttle) OnWait(fn func(time.Duration)) *Throttle {
	t.observe = fn
	return t
}

// Acquire blocks until the caller may issue a request or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("throttle: %w", err)
	}
	if t.observe != nil {
		t.observe(time.Since(start))
	}
	return nil
}
