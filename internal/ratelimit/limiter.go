package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sittingbulll/tokenwatch/internal/metrics"
)

// Limiter paces outbound calls to an upstream API. It wraps a token bucket
// and records every wait so starvation shows up in monitoring before it
// shows up as stalled lookups.
type Limiter struct {
	bucket *rate.Limiter
}

// New builds a limiter allowing rps requests per second with the given
// burst. Non-positive values disable limiting.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	res := l.bucket.Reserve()
	if !res.OK() {
		return fmt.Errorf("rate limiter: burst too small for request")
	}
	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	metrics.NotablesRateLimitWaits.Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

// Allow reports whether a call may proceed right now without waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
