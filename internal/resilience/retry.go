// Package resilience wraps upstream calls with bounded retries, a circuit
// breaker, and per-provider rate limiting. The three pieces compose: a
// breaker can guard a retry-wrapped call or sit inside one, depending on the
// failure isolation the caller wants.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds total attempts including the first. Default 3.
	MaxAttempts int
	// InitialDelay is the backoff before the first retry. Default 100ms.
	InitialDelay time.Duration
	// MaxDelay caps the computed backoff. Default 10s.
	MaxDelay time.Duration
	// Multiplier grows the backoff per attempt. Default 2.0.
	Multiplier float64
	// Jitter randomizes each delay by ±Jitter. Default 0.25, clamped to
	// [0.1, 0.25] when set outside that range.
	Jitter float64
	// ShouldRetry can veto retrying a specific error. When nil,
	// retryability comes from the error classification in pkg/errors.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns the default retry tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.25,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.25
	}
	if c.Jitter < 0.1 {
		c.Jitter = 0.1
	} else if c.Jitter > 0.25 {
		c.Jitter = 0.25
	}
	return c
}

// Attempt records one executed attempt for introspection.
type Attempt struct {
	Number    int
	Timestamp time.Time
	Delay     time.Duration
	Err       error
}

// Retryer executes functions with exponential backoff and jitter.
type Retryer struct {
	config RetryConfig

	mu       sync.Mutex
	attempts []Attempt
}

// NewRetryer creates a Retryer, applying defaults to zero config values.
func NewRetryer(config RetryConfig) *Retryer {
	return &Retryer{config: config.withDefaults()}
}

// Do executes fn, retrying retryable failures until MaxAttempts is exhausted.
// The last error is returned once the budget runs out. Non-retryable errors
// abort immediately without consuming the remaining budget.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	r.attempts = r.attempts[:0]
	r.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.backoff(attempt - 1)
			r.record(Attempt{Number: attempt, Timestamp: time.Now(), Delay: delay})

			select {
			case <-ctx.Done():
				return sdkerrors.Wrap(ctx.Err(), sdkerrors.ErrCodeTimeout, "retry canceled")
			case <-time.After(delay):
			}
		} else {
			r.record(Attempt{Number: attempt, Timestamp: time.Now()})
		}

		err := fn(ctx)
		r.recordErr(err)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) {
			return err
		}
	}
	return lastErr
}

// Attempts returns the attempt log from the most recent Do call.
func (r *Retryer) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

func (r *Retryer) shouldRetry(err error) bool {
	if r.config.ShouldRetry != nil {
		return r.config.ShouldRetry(err)
	}
	return sdkerrors.Retryable(err)
}

// backoff computes InitialDelay * Multiplier^(retry-1), capped at MaxDelay,
// with ±Jitter randomization.
func (r *Retryer) backoff(retry int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(retry-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	jitter := delay * r.config.Jitter * (rand.Float64()*2 - 1)
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (r *Retryer) record(a Attempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
}

func (r *Retryer) recordErr(err error) {
	r.mu.Lock()
	if n := len(r.attempts); n > 0 {
		r.attempts[n-1].Err = err
	}
	r.mu.Unlock()
}
