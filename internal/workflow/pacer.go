package workflow

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between device connections.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer spaces connections with a token bucket of size one.
// The first Wait returns immediately.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing one connection per interval.
// A zero or negative interval disables pacing.
func NewPacer(interval time.Duration) *RatePacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RatePacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next connection may start
func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
