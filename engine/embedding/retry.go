package embedding

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// retryPolicy implements the exponential-backoff-with-jitter scheme from
// spec §4.A: a call failing with Transient is attempted at most MaxAttempts
// times in total (the first try included); between attempts the wait
// grows as base * 2^attempt, clamped to MaxBackoff, with up to ±50% jitter
// so a burst of failing callers doesn't retry in lockstep.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxBackoff  time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts: 4,
		BaseDelay:   200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	jitter := 0.5 + rand.Float64() // [0.5, 1.5)
	return time.Duration(d * jitter)
}

// sleep waits out a single backoff interval, returning early with ctx's
// error if the context is cancelled first.
func (p retryPolicy) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
