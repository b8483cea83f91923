// Package retry runs operations under a declared backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"house-prices/internal/models"
)

// Policy declares how an operation is retried
type Policy struct {
	// MaxAttempts counts the first try
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// MaxDelay caps a single backoff; zero means uncapped
	MaxDelay time.Duration
	// Jitter spreads each delay uniformly by ±Jitter of its nominal value
	Jitter float64
	// Retryable decides which failures are retried; nil retries transient kinds
	Retryable func(error) bool
}

// DefaultPolicy is three attempts from 500ms doubling, ±20% jitter
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Validate reports settings that cannot drive a retry loop
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0:
		return fmt.Errorf("base delay must not be negative, got %s", p.BaseDelay)
	case p.Multiplier < 1:
		return fmt.Errorf("multiplier must be at least 1, got %v", p.Multiplier)
	case p.MaxDelay < 0:
		return fmt.Errorf("max delay must not be negative, got %s", p.MaxDelay)
	case p.Jitter < 0 || p.Jitter >= 1:
		return fmt.Errorf("jitter must be in [0,1), got %v", p.Jitter)
	}
	return nil
}

// Backoff returns the nominal wait after the given failed attempt (1-based)
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p Policy) jittered(attempt int) time.Duration {
	d := p.Backoff(attempt)
	if p.Jitter == 0 || d == 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * p.Jitter
	return time.Duration(float64(d) * (1 + spread))
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return models.IsTransient(err)
}

// ErrExhausted marks the last failure of an operation that used every attempt
var ErrExhausted = errors.New("retries exhausted")

// Do runs op until it succeeds, fails with a non-retryable error, or uses
// up the policy's attempts. op receives the 1-based attempt number. After
// the last attempt the final error is returned, wrapped with ErrExhausted.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if !p.retryable(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt >= p.MaxAttempts {
			return zero, &exhaustedError{attempts: attempt, err: err}
		}

		timer := time.NewTimer(p.jittered(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}

type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{e.err, ErrExhausted}
}
