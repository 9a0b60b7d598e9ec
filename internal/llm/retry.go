package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds attempts and per-attempt time of a provider call
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Timeout:     45 * time.Second,
	}
}

// Delay returns the backoff before retry number attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// swapped out in tests
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns a non-temporary error, or the
// policy runs out of attempts. fn should bound itself with policy.Timeout.
func Retry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTemporary(err) || attempt == attempts || ctx.Err() != nil {
			break
		}

		wait := policy.Delay(attempt)
		logger.Warn("AI call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err))

		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
