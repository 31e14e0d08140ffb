// Package providers defines the upstream provider contract and the concrete
// REST adapters that implement it. Each adapter is a thin mapper from one
// external API onto the SDK's record types; routing, retries, and conflict
// resolution all happen above this package.
package providers

import (
	"context"

	"github.com/CardaLabs/sdk/internal/domain"
)

// Config carries provider credentials and endpoint overrides.
type Config struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Network string `yaml:"network" json:"network"`
}

// Result is the outcome of one provider fetch. Success with partial data is
// normal; the aggregator decides per field what is usable.
type Result struct {
	Success bool
	Data    domain.Record
	Err     error
}

// Provider is the contract every upstream adapter implements. The router and
// aggregator only ever call these operations; they never inspect internals.
type Provider interface {
	// Name returns the unique provider identifier.
	Name() string

	// Capabilities returns the declared, immutable capability set.
	Capabilities() domain.Capabilities

	// Initialize prepares the adapter for use.
	Initialize(ctx context.Context, cfg Config) error

	// HealthCheck probes the upstream dependency.
	HealthCheck(ctx context.Context) domain.HealthStatus

	// GetTokenData fetches whatever token fields the provider supplies.
	GetTokenData(ctx context.Context, unit string, opts *domain.RequestOptions) Result

	// GetWalletData fetches whatever wallet fields the provider supplies.
	GetWalletData(ctx context.Context, address string, opts *domain.RequestOptions) Result

	// Destroy releases adapter resources.
	Destroy(ctx context.Context) error
}

// BatchProvider is the optional batch extension. Callers discover it with a
// type assertion after checking Capabilities().Batch.
type BatchProvider interface {
	Provider
	GetTokenDataBatch(ctx context.Context, units []string, opts *domain.RequestOptions) map[string]Result
}

// HistoricalProvider is the optional history extension, gated on
// Capabilities().Historical.
type HistoricalProvider interface {
	Provider
	GetHistoricalTokenData(ctx context.Context, unit string, daysBack int) ([]domain.TokenData, error)
}
