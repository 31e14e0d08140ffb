package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	r := NewRetryer(RetryConfig{})
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryExhaustsBudgetAndReturnsLastError(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
	})
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return sdkerrors.Newf(sdkerrors.ErrCodeNetwork, "boom %d", calls)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if err.Error() == "" || !errors.As(err, new(*sdkerrors.Error)) {
		t.Fatalf("want last typed error, got %v", err)
	}
	if sdkerrors.CodeOf(err) != sdkerrors.ErrCodeNetwork {
		t.Fatalf("want NETWORK code on last error, got %s", sdkerrors.CodeOf(err))
	}
}

func TestRetryNonRetryableAbortsImmediately(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return sdkerrors.New(sdkerrors.ErrCodeValidation, "bad input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("non-retryable error should not retry, got %d calls", calls)
	}
}

func TestRetryShouldRetryOverride(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(err error) bool { return err.Error() == "again" },
	})
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("again")
		}
		return errors.New("stop")
	})
	if err == nil || err.Error() != "stop" {
		t.Fatalf("want stop, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryDelayBounds(t *testing.T) {
	// With InitialDelay=100ms, Multiplier=2.0, Jitter=0.25 the first retry
	// delay must land in [75ms, 125ms] and the second in [150ms, 250ms].
	r := NewRetryer(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0.25,
	})
	_ = r.Do(context.Background(), func(context.Context) error {
		return sdkerrors.New(sdkerrors.ErrCodeNetwork, "down")
	})

	attempts := r.Attempts()
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if attempts[0].Delay != 0 {
		t.Fatalf("first attempt must not be delayed, got %v", attempts[0].Delay)
	}
	checkBounds := func(d, lo, hi time.Duration) {
		t.Helper()
		if d < lo || d > hi {
			t.Fatalf("delay %v outside [%v, %v]", d, lo, hi)
		}
	}
	checkBounds(attempts[1].Delay, 75*time.Millisecond, 125*time.Millisecond)
	checkBounds(attempts[2].Delay, 150*time.Millisecond, 250*time.Millisecond)
}

func TestRetryMaxDelayCap(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     15 * time.Millisecond,
		Multiplier:   10.0,
		Jitter:       0.1,
	})
	_ = r.Do(context.Background(), func(context.Context) error {
		return sdkerrors.New(sdkerrors.ErrCodeNetwork, "down")
	})
	for _, a := range r.Attempts()[1:] {
		if float64(a.Delay) > float64(15*time.Millisecond)*1.1 {
			t.Fatalf("delay %v exceeds jittered cap", a.Delay)
		}
	}
}

func TestRetryContextCancellation(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, func(context.Context) error {
		calls++
		return sdkerrors.New(sdkerrors.ErrCodeNetwork, "down")
	})
	if sdkerrors.CodeOf(err) != sdkerrors.ErrCodeTimeout {
		t.Fatalf("want TIMEOUT after cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation during first backoff, got %d calls", calls)
	}
}

func TestJitterClamping(t *testing.T) {
	cfg := RetryConfig{Jitter: 0.9}.withDefaults()
	if cfg.Jitter != 0.25 {
		t.Fatalf("jitter should clamp to 0.25, got %v", cfg.Jitter)
	}
	cfg = RetryConfig{Jitter: 0.01}.withDefaults()
	if cfg.Jitter != 0.1 {
		t.Fatalf("jitter should clamp to 0.1, got %v", cfg.Jitter)
	}
}
