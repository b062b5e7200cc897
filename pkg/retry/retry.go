package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures bounded exponential backoff. The wait before attempt
// n+1 is min(BaseDelay × Multiplier^(n−1), MaxDelay), so the schedule is
// monotonically non-decreasing.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the delivery defaults: 3 attempts, 1s base,
// 30s cap, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return NewValidationError("retry policy: max attempts must be at least 1")
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return NewValidationError("retry policy: delays must not be negative")
	}
	if p.Multiplier < 1 {
		return NewValidationError("retry policy: multiplier must be at least 1")
	}
	return nil
}

// Observer is invoked with the attempt number after every retryable
// failure, including the attempt that exhausts the budget.
type Observer func(attempt int)

// Do invokes op up to p.MaxAttempts times. Non-retryable errors are
// returned immediately without backoff. On exhaustion the last error is
// returned unchanged so callers can inspect the original fault. The
// backoff wait is context-aware: cancellation abandons the wait and the
// last error is joined with ctx.Err().
func Do[T any](ctx context.Context, p Policy, observe Observer, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	// backoff/v4 computes the capped exponential schedule; randomization
	// is disabled so delays are deterministic.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
		if observe != nil {
			observe(attempt)
		}
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, fmt.Errorf("retry abandoned: %w", ctx.Err()))
		case <-timer.C:
		}
	}
	return zero, lastErr
}
