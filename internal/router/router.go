// Package router maps requested fields onto the providers able to supply
// them. For every field it picks a primary provider through the active
// routing strategy and orders the remaining candidates into a fallback chain,
// using live per-provider metrics when the strategy calls for them.
package router

import (
	"sort"
	"sync"
	"time"

	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/internal/providers"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

// emaAlpha is the smoothing factor for response-time moving averages.
const emaAlpha = 0.1

// metrics is the mutable per-provider rolling state. Only the router mutates
// it, under r.mu.
type metrics struct {
	avgResponseTime float64 // milliseconds
	requestCount    int64
	failureCount    int64
	successRate     float64
	lastUsed        time.Time
}

// Router owns the provider registry, the per-provider metrics, and the
// field priority tables. Registration and the update methods are the only
// mutation paths.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]providers.Provider
	metrics    map[string]*metrics
	priorities map[string][]string
	log        *logger.Logger
}

// New creates an empty router.
func New(log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault("router")
	}
	return &Router{
		providers:  make(map[string]providers.Provider),
		metrics:    make(map[string]*metrics),
		priorities: make(map[string][]string),
		log:        log,
	}
}

// RegisterProvider adds a provider to the registry.
func (r *Router) RegisterProvider(p providers.Provider) error {
	name := p.Name()
	if name == "" {
		return sdkerrors.New(sdkerrors.ErrCodeValidation, "provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return sdkerrors.Newf(sdkerrors.ErrCodeConfiguration, "provider %s already registered", name)
	}
	r.providers[name] = p
	r.metrics[name] = &metrics{successRate: 1.0}

	r.log.WithField("provider", name).Info("provider registered")
	return nil
}

// UnregisterProvider removes a provider and its metrics.
func (r *Router) UnregisterProvider(name string) {
	r.mu.Lock()
	delete(r.providers, name)
	delete(r.metrics, name)
	r.mu.Unlock()

	r.log.WithField("provider", name).Info("provider unregistered")
}

// Provider returns the registered provider by name.
func (r *Router) Provider(name string) (providers.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ProviderNames returns all registered provider names.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetFieldPriority configures the ordered provider preference for a field.
func (r *Router) SetFieldPriority(field string, providerNames []string) {
	ordered := make([]string, len(providerNames))
	copy(ordered, providerNames)

	r.mu.Lock()
	r.priorities[field] = ordered
	r.mu.Unlock()
}

// FieldPriority returns the configured priority list for a field.
func (r *Router) FieldPriority(field string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.priorities[field]
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// ProvidersForField returns the names of registered providers whose declared
// capabilities include the field.
func (r *Router) ProvidersForField(field string, kind domain.RecordKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.candidatesLocked(field, kind)
}

func (r *Router) candidatesLocked(field string, kind domain.RecordKind) []string {
	var names []string
	for name, p := range r.providers {
		if p.Capabilities().Supports(field, kind) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UpdateMetrics folds one call outcome into the provider's rolling stats.
// Response time uses an exponential moving average; the success rate is
// recomputed after every call.
func (r *Router) UpdateMetrics(name string, responseTime time.Duration, success bool) {
	ms := float64(responseTime.Milliseconds())

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[name]
	if !ok {
		return
	}

	if m.requestCount == 0 {
		m.avgResponseTime = ms
	} else {
		m.avgResponseTime = emaAlpha*ms + (1-emaAlpha)*m.avgResponseTime
	}
	m.requestCount++
	if !success {
		m.failureCount++
	}
	m.successRate = float64(m.requestCount-m.failureCount) / float64(m.requestCount)
	m.lastUsed = time.Now()
}

// Metrics returns a snapshot of the provider's rolling stats.
func (r *Router) Metrics(name string) (domain.ProviderMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metrics[name]
	if !ok {
		return domain.ProviderMetrics{}, false
	}
	return domain.ProviderMetrics{
		AvgResponseTime: time.Duration(m.avgResponseTime) * time.Millisecond,
		RequestCount:    m.requestCount,
		FailureCount:    m.failureCount,
		SuccessRate:     m.successRate,
		LastUsed:        m.lastUsed,
	}, true
}

// AllMetrics snapshots metrics for every registered provider.
func (r *Router) AllMetrics() map[string]domain.ProviderMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.ProviderMetrics, len(r.metrics))
	for name, m := range r.metrics {
		out[name] = domain.ProviderMetrics{
			AvgResponseTime: time.Duration(m.avgResponseTime) * time.Millisecond,
			RequestCount:    m.requestCount,
			FailureCount:    m.failureCount,
			SuccessRate:     m.successRate,
			LastUsed:        m.lastUsed,
		}
	}
	return out
}

// OptimalProvider picks the best candidate for a field under the strategy.
// Returns "" when no candidate qualifies.
func (r *Router) OptimalProvider(field string, candidates []string, strategy domain.RoutingStrategy) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.optimalLocked(field, candidates, strategy)
}

func (r *Router) optimalLocked(field string, candidates []string, strategy domain.RoutingStrategy) string {
	if len(candidates) == 0 {
		return ""
	}

	switch strategy {
	case domain.RouteFastest:
		best, bestLatency := "", 0.0
		for _, name := range candidates {
			m := r.metrics[name]
			if m == nil {
				continue
			}
			if best == "" || m.avgResponseTime < bestLatency {
				best, bestLatency = name, m.avgResponseTime
			}
		}
		return best

	case domain.RouteReliability:
		best, bestRate := "", -1.0
		for _, name := range candidates {
			m := r.metrics[name]
			if m == nil {
				continue
			}
			if m.successRate > bestRate {
				best, bestRate = name, m.successRate
			}
		}
		return best

	case domain.RouteCost:
		best, bestCost := "", 0.0
		for _, name := range candidates {
			p, ok := r.providers[name]
			if !ok {
				continue
			}
			cost := p.Capabilities().Cost
			if best == "" || cost < bestCost {
				best, bestCost = name, cost
			}
		}
		return best

	default: // priority
		for _, name := range r.priorities[field] {
			for _, candidate := range candidates {
				if candidate == name {
					return name
				}
			}
		}
		// No priority entry matched; fall back to the first candidate.
		return candidates[0]
	}
}

// PlanRouting builds the per-field routing plan for one request. Fields no
// registered provider declares are omitted unless a priority list references
// them, in which case a plan naming the first priority entry is emitted so
// downstream code can surface a precise provider-not-found error.
func (r *Router) PlanRouting(fields []string, kind domain.RecordKind, strategy domain.RoutingStrategy, opts *domain.RequestOptions) map[string]domain.RoutingPlan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plans := make(map[string]domain.RoutingPlan, len(fields))
	for _, field := range fields {
		candidates := r.candidatesLocked(field, kind)

		if opts != nil && len(opts.PreferredProviders) > 0 {
			candidates = preferFirst(candidates, opts.PreferredProviders)
		}

		if len(candidates) == 0 {
			if priority := r.priorities[field]; len(priority) > 0 {
				plans[field] = domain.RoutingPlan{
					Field:            field,
					Primary:          priority[0],
					EstimatedSuccess: 0,
				}
			}
			continue
		}

		primary := r.optimalLocked(field, candidates, strategy)
		if primary == "" {
			primary = candidates[0]
		}

		fallbacks := make([]string, 0, len(candidates)-1)
		for _, name := range candidates {
			if name != primary {
				fallbacks = append(fallbacks, name)
			}
		}
		sort.SliceStable(fallbacks, func(i, j int) bool {
			mi, mj := r.metrics[fallbacks[i]], r.metrics[fallbacks[j]]
			if mi == nil || mj == nil {
				return mj == nil && mi != nil
			}
			if mi.successRate != mj.successRate {
				return mi.successRate > mj.successRate
			}
			return mi.avgResponseTime < mj.avgResponseTime
		})
		if opts != nil && len(opts.FallbackProviders) > 0 {
			fallbacks = preferFirst(fallbacks, opts.FallbackProviders)
		}

		plan := domain.RoutingPlan{
			Field:     field,
			Primary:   primary,
			Fallbacks: fallbacks,
		}
		if m := r.metrics[primary]; m != nil {
			plan.EstimatedLatency = time.Duration(m.avgResponseTime) * time.Millisecond
			plan.EstimatedSuccess = m.successRate
		}
		plans[field] = plan
	}
	return plans
}

// preferFirst reorders candidates so preferred names come first, keeping the
// original order among the rest.
func preferFirst(candidates, preferred []string) []string {
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c] = true
	}

	out := make([]string, 0, len(candidates))
	for _, p := range preferred {
		if seen[p] {
			out = append(out, p)
			seen[p] = false
		}
	}
	for _, c := range candidates {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}
