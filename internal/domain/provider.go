package domain

import "time"

// RecordKind selects between the two field namespaces.
type RecordKind string

const (
	KindToken  RecordKind = "token"
	KindWallet RecordKind = "wallet"
)

// Record is the field-addressable view shared by TokenData and WalletData.
type Record interface {
	FieldValue(field string) (interface{}, bool)
	SetField(field string, value interface{})
}

var _ Record = (*TokenData)(nil)
var _ Record = (*WalletData)(nil)

// RateLimits describes a provider's declared throttling contract.
type RateLimits struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// Capabilities is a provider's declared, immutable capability set. It is
// fixed at registration and never mutated afterwards.
type Capabilities struct {
	TokenFields  []string   `json:"token_fields"`
	WalletFields []string   `json:"wallet_fields"`
	Batch        bool       `json:"batch"`
	Realtime     bool       `json:"realtime"`
	Historical   bool       `json:"historical"`
	RateLimits   RateLimits `json:"rate_limits"`
	// Cost is the provider's relative cost per call, used by the cost
	// routing strategy. Zero when undeclared.
	Cost float64 `json:"cost"`
}

// Supports reports whether the capability set declares the field for the kind.
func (c Capabilities) Supports(field string, kind RecordKind) bool {
	fields := c.TokenFields
	if kind == KindWallet {
		fields = c.WalletFields
	}
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

// ProviderMetrics is a point-in-time snapshot of a provider's rolling stats.
type ProviderMetrics struct {
	AvgResponseTime time.Duration `json:"avg_response_time"`
	RequestCount    int64         `json:"request_count"`
	FailureCount    int64         `json:"failure_count"`
	SuccessRate     float64       `json:"success_rate"`
	LastUsed        time.Time     `json:"last_used"`
}

// RoutingPlan is the per-field provider choice for one request.
type RoutingPlan struct {
	Field             string        `json:"field"`
	Primary           string        `json:"primary"`
	Fallbacks         []string      `json:"fallbacks,omitempty"`
	EstimatedLatency  time.Duration `json:"estimated_latency"`
	EstimatedSuccess  float64       `json:"estimated_success"`
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	LastError    string        `json:"last_error,omitempty"`
}
