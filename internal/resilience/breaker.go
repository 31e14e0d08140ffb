package resilience

import (
	"context"
	"sync"
	"time"

	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default 5.
	FailureThreshold int
	// SuccessThreshold is the consecutive-success count in half-open that
	// closes the circuit. Default 2.
	SuccessThreshold int
	// RecoveryTime is how long the circuit stays open before allowing a
	// half-open trial. Default 30s.
	RecoveryTime time.Duration
	// OnStateChange is invoked on every transition.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTime:     30 * time.Second,
	}
}

// Breaker is a failure-isolation state machine. While open, calls are
// rejected immediately without any I/O.
type Breaker struct {
	mu     sync.Mutex
	config BreakerConfig
	state  BreakerState

	failures  int
	successes int
	lastError error
	openedAt  time.Time
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.RecoveryTime <= 0 {
		config.RecoveryTime = 30 * time.Second
	}
	return &Breaker{config: config, state: BreakerClosed}
}

// Allow reports whether a call may proceed, transitioning open to half-open
// once the recovery time has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.config.RecoveryTime {
			b.transition(BreakerHalfOpen)
			return nil
		}
		return sdkerrors.New(sdkerrors.ErrCodeCircuitOpen, "circuit breaker is open")
	default:
		return nil
	}
}

// RecordSuccess feeds a successful call into the state machine.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

// RecordFailure feeds a failed call into the state machine. Any failure in
// half-open reopens the circuit.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastError = err

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

// Execute runs fn under the breaker: rejected immediately when open,
// outcome recorded otherwise. Composable with Retryer in either order.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.RecordFailure(err)
		return err
	}
	b.RecordSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the most recent recorded failure.
func (b *Breaker) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to

	switch to {
	case BreakerClosed:
		b.failures = 0
		b.successes = 0
	case BreakerOpen:
		b.openedAt = time.Now()
		b.successes = 0
	case BreakerHalfOpen:
		b.successes = 0
	}

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(from, to)
	}
}
