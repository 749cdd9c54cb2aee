// Package ratelimit provides the in-process token bucket backing the
// Embedding Gateway's request shaping (spec §4.A, §5). Ingestion workers
// draw from the shared bucket; interactive search queries draw from a
// reserved high-priority bucket so they are never starved by background
// ingestion (testable property 8 / scenario S6).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnemograph/mnemograph/engine/errs"
)

// Bucket shapes a process-wide request rate with a reserved high-priority
// share for interactive callers.
type Bucket struct {
	standard *rate.Limiter
	priority *rate.Limiter
}

// Config configures a Bucket.
type Config struct {
	// RequestsPerSecond is the overall sustained rate R.
	RequestsPerSecond float64
	// Burst is the overall burst size B.
	Burst int
	// PriorityFraction is the portion of the bucket (0, 1] reserved for
	// high-priority callers (Search). Spec requires >= 0.20.
	PriorityFraction float64
}

// DefaultConfig returns sane defaults: 10 req/s, burst 20, 20% reserved.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		PriorityFraction:  0.2,
	}
}

// New creates a Bucket. The priority limiter is sized as a fraction of the
// overall rate/burst so interactive queries always have dedicated headroom
// even when background ingestion has saturated the standard limiter.
func New(cfg Config) *Bucket {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.PriorityFraction <= 0 || cfg.PriorityFraction > 1 {
		cfg.PriorityFraction = 0.2
	}

	priorityRate := cfg.RequestsPerSecond * cfg.PriorityFraction
	priorityBurst := int(float64(cfg.Burst) * cfg.PriorityFraction)
	if priorityBurst < 1 {
		priorityBurst = 1
	}

	standardRate := cfg.RequestsPerSecond - priorityRate
	standardBurst := cfg.Burst - priorityBurst
	if standardBurst < 1 {
		standardBurst = 1
	}

	return &Bucket{
		standard: rate.NewLimiter(rate.Limit(standardRate), standardBurst),
		priority: rate.NewLimiter(rate.Limit(priorityRate), priorityBurst),
	}
}

// Wait blocks a background (ingestion) caller until a standard-bucket token
// is available or ctx's deadline expires, at which point it returns a
// Timeout error so the caller can fail fast rather than hang indefinitely.
func (b *Bucket) Wait(ctx context.Context) error {
	return waitOn(ctx, b.standard)
}

// WaitPriority blocks a high-priority (interactive Search) caller on the
// reserved bucket, which is never exhausted by background ingestion alone.
func (b *Bucket) WaitPriority(ctx context.Context) error {
	return waitOn(ctx, b.priority)
}

func waitOn(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		// rate.Limiter fails early, before ctx expires, when the wait would
		// overrun ctx's deadline; that is a deadline failure too.
		if _, hasDeadline := ctx.Deadline(); hasDeadline || ctx.Err() != nil {
			return errs.Wrap(errs.Timeout, err, "rate limiter wait")
		}
		return errs.Wrap(errs.Transient, err, "rate limiter wait")
	}
	return nil
}

// WaitDeadline is a convenience wrapper applying a fixed deadline from now,
// used by queued FIFO callers per spec §4.A's "queued requests honor a
// deadline" rule.
func (b *Bucket) WaitDeadline(parent context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return b.Wait(ctx)
}
