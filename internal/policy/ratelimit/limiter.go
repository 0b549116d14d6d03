// Package ratelimit throttles request submissions so a client stays under the
// service's per-IP request cap.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/siteclone/internal/metrics"
)

// DefaultRequestsPerMinute matches the cap the mirroring service enforces.
const DefaultRequestsPerMinute = 5

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute <= 0 disables throttling.
	RequestsPerMinute int
	// Burst defaults to RequestsPerMinute.
	Burst int
}

// Limiter is a single token bucket shared by every submission of the process.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	every := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &Limiter{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Wait blocks until a submission of website may be sent and returns how long
// it waited.
func (l *Limiter) Wait(ctx context.Context, website string) (time.Duration, error) {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return time.Since(start), fmt.Errorf("rate limit wait: %w", err)
	}
	waited := time.Since(start)
	// Immediate grants are not delays.
	if waited > time.Millisecond {
		metrics.ObserveSubmissionWait(website, waited)
	}
	return waited, nil
}

// Allow reports whether a submission could be sent right now without waiting,
// consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
