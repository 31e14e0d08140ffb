package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/CardaLabs/sdk/internal/domain"
)

// Limiter enforces each provider's declared rate limits before a call is
// issued. Providers without declared limits are not throttled.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewLimiter creates an empty limiter registry.
func NewLimiter() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// Register installs a limiter for the provider from its declared limits.
func (l *Limiter) Register(provider string, limits domain.RateLimits) {
	if limits.RequestsPerSecond <= 0 {
		return
	}
	burst := limits.Burst
	if burst <= 0 {
		burst = 1
	}

	l.mu.Lock()
	l.limiters[provider] = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	l.mu.Unlock()
}

// Unregister removes the provider's limiter.
func (l *Limiter) Unregister(provider string) {
	l.mu.Lock()
	delete(l.limiters, provider)
	l.mu.Unlock()
}

// Wait blocks until the provider's limiter grants a slot or ctx is done.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	l.mu.RLock()
	limiter, ok := l.limiters[provider]
	l.mu.RUnlock()

	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
