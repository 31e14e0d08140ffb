package domain

import "time"

// RoutingStrategy selects how the router picks a field's primary provider.
type RoutingStrategy string

const (
	RoutePriority    RoutingStrategy = "priority"
	RouteFastest     RoutingStrategy = "fastest"
	RouteReliability RoutingStrategy = "reliability"
	RouteCost        RoutingStrategy = "cost"
)

// ConflictStrategy selects how disagreeing provider values are reconciled.
type ConflictStrategy string

const (
	ConflictPriority ConflictStrategy = "priority"
	ConflictMajority ConflictStrategy = "majority"
	// ConflictNewest currently degrades to ConflictPriority: providers do
	// not report per-field observation times, so recency cannot be compared.
	// ProviderExecution.ObservedAt is plumbed through for when they do.
	ConflictNewest ConflictStrategy = "newest"
)

// AggregationStrategy bundles the per-request policy knobs.
type AggregationStrategy struct {
	Routing  RoutingStrategy  `yaml:"routing" json:"routing"`
	Conflict ConflictStrategy `yaml:"conflict" json:"conflict"`
	// FetchAllPriority also queries every priority-listed provider that
	// declares a field, not only the chosen primary. Extra calls buy
	// conflict detection even when providers agree.
	FetchAllPriority bool `yaml:"fetch_all_priority" json:"fetch_all_priority"`
}

// DefaultStrategy returns the default aggregation policy.
func DefaultStrategy() AggregationStrategy {
	return AggregationStrategy{
		Routing:          RoutePriority,
		Conflict:         ConflictPriority,
		FetchAllPriority: true,
	}
}

// RequestOptions carries per-call overrides from the facade into the router
// and the retry executor.
type RequestOptions struct {
	Timeout            time.Duration `json:"timeout,omitempty"`
	MaxRetries         int           `json:"max_retries,omitempty"`
	RetryDelay         time.Duration `json:"retry_delay,omitempty"`
	PreferredProviders []string      `json:"preferred_providers,omitempty"`
	FallbackProviders  []string      `json:"fallback_providers,omitempty"`
	// SkipCache bypasses the cache for this request. The zero value keeps
	// caching on.
	SkipCache bool `json:"skip_cache,omitempty"`
	// CacheTTL overrides the cache's default TTL for the stored response.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`
}

// ProviderExecution records one provider call's outcome. It lives only for
// the duration of a single aggregation.
type ProviderExecution struct {
	Provider string
	Success  bool
	Data     Record
	Err      error
	Elapsed  time.Duration
	Fields   []string
	// ObservedAt is when the provider reported its values. Reserved for a
	// true newest conflict strategy; today it is the call completion time.
	ObservedAt time.Time
}

// ConflictingValue is a provider value that lost conflict resolution.
type ConflictingValue struct {
	Provider string      `json:"provider"`
	Value    interface{} `json:"value"`
}

// FieldResult is the resolved value for one field. Invariant: Sources always
// has at least one entry.
type FieldResult struct {
	Field      string             `json:"field"`
	Value      interface{}        `json:"value"`
	Sources    []string           `json:"sources"`
	Confidence float64            `json:"confidence"`
	Conflicts  []ConflictingValue `json:"conflicts,omitempty"`
}

// CacheStatus reports whether a response came from cache.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// ProviderError is one recoverable (or not) failure surfaced to the caller.
type ProviderError struct {
	Provider    string `json:"provider"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ResponseMetadata annotates a unified response with provenance and timing.
type ResponseMetadata struct {
	RequestID    string        `json:"request_id,omitempty"`
	DataSources  []string      `json:"data_sources"`
	CacheStatus  CacheStatus   `json:"cache_status"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
	// Fields is the per-field resolution outcome, keyed by field name.
	// Conflicts list the values that lost resolution, so disagreement
	// between providers stays observable after the winner is chosen.
	Fields         map[string]FieldResult `json:"fields,omitempty"`
	ProviderHealth map[string]bool        `json:"provider_health,omitempty"`
}

// TokenResponse is the unified response for a token aggregation.
type TokenResponse struct {
	Data     TokenData        `json:"data"`
	Metadata ResponseMetadata `json:"metadata"`
	Errors   []ProviderError  `json:"errors,omitempty"`
}

// WalletResponse is the unified response for a wallet aggregation.
type WalletResponse struct {
	Data     WalletData       `json:"data"`
	Metadata ResponseMetadata `json:"metadata"`
	Errors   []ProviderError  `json:"errors,omitempty"`
}

// Clone returns a deep copy sharing no pointers or slices with the receiver,
// so cached responses stay isolated from caller mutation.
func (r *TokenResponse) Clone() *TokenResponse {
	if r == nil {
		return nil
	}
	return &TokenResponse{
		Data:     r.Data.Clone(),
		Metadata: r.Metadata.Clone(),
		Errors:   cloneSlice(r.Errors),
	}
}

// Clone returns a deep copy sharing no pointers or slices with the receiver.
func (r *WalletResponse) Clone() *WalletResponse {
	if r == nil {
		return nil
	}
	return &WalletResponse{
		Data:     r.Data.Clone(),
		Metadata: r.Metadata.Clone(),
		Errors:   cloneSlice(r.Errors),
	}
}

// Clone copies the metadata including its maps and slices.
func (m ResponseMetadata) Clone() ResponseMetadata {
	cp := m
	cp.DataSources = cloneSlice(m.DataSources)
	if m.Fields != nil {
		cp.Fields = make(map[string]FieldResult, len(m.Fields))
		for field, result := range m.Fields {
			cp.Fields[field] = result.Clone()
		}
	}
	if m.ProviderHealth != nil {
		cp.ProviderHealth = make(map[string]bool, len(m.ProviderHealth))
		for name, healthy := range m.ProviderHealth {
			cp.ProviderHealth[name] = healthy
		}
	}
	return cp
}

// Clone copies the result's slices. Values themselves are treated as
// immutable once resolved.
func (f FieldResult) Clone() FieldResult {
	cp := f
	cp.Sources = cloneSlice(f.Sources)
	cp.Conflicts = cloneSlice(f.Conflicts)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
