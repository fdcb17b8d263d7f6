package identity

import (
	"context"
	"time"
)

// LimitDecision is the outcome of a rate-limit check. ResetAt tells the
// caller when the budget replenishes (or the block lifts).
type LimitDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// rateLimiter implements the sliding-window policy on top of whatever
// RateLimitStore the engine was built with. Check and Increment are
// deliberately separate: callers check before doing expensive work and
// increment only on actual attempts.
type rateLimiter struct {
	store RateLimitStore
}

// Check evaluates the budget for key without consuming any of it. When the
// current window is exhausted it records a block of one window length.
func (l *rateLimiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) (LimitDecision, error) {
	now := time.Now()

	rec, err := l.store.GetRateLimit(ctx, key)
	if err != nil {
		return LimitDecision{}, err
	}
	if rec == nil {
		return LimitDecision{Allowed: true, Remaining: maxAttempts, ResetAt: now.Add(window)}, nil
	}

	if rec.BlockedUntil != nil && rec.BlockedUntil.After(now) {
		return LimitDecision{Allowed: false, ResetAt: *rec.BlockedUntil}, nil
	}

	windowLive := rec.WindowStart.After(now.Add(-window))
	if windowLive && rec.Count >= maxAttempts {
		until := now.Add(window)
		if err := l.store.BlockRateLimit(ctx, key, until); err != nil {
			return LimitDecision{}, err
		}
		return LimitDecision{Allowed: false, ResetAt: until}, nil
	}

	if !windowLive {
		return LimitDecision{Allowed: true, Remaining: maxAttempts, ResetAt: now.Add(window)}, nil
	}
	return LimitDecision{Allowed: true, Remaining: maxAttempts - rec.Count, ResetAt: rec.WindowStart.Add(window)}, nil
}

// Increment records one attempt against key. The store serializes
// concurrent increments; a window older than the window size starts over.
func (l *rateLimiter) Increment(ctx context.Context, key string, window time.Duration) error {
	_, err := l.store.IncrementRateLimit(ctx, key, time.Now(), window)
	return err
}

// Reset clears the counter for key, used after successful authentication.
func (l *rateLimiter) Reset(ctx context.Context, key string) error {
	return l.store.DeleteRateLimit(ctx, key)
}

// checkLimit runs a rate-limit check and converts a denial into a
// *RateLimitError.
func (e *Engine) checkLimit(ctx context.Context, key string, maxAttempts int, window time.Duration) error {
	decision, err := e.limiter.Check(ctx, key, maxAttempts, window)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &RateLimitError{Key: key, ResetAt: decision.ResetAt}
	}
	return nil
}
