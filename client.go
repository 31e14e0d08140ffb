// Package sdk is the public entry point for the Cardano data aggregation
// engine. A Client wires providers, routing, resilience, caching, and
// aggregation behind two calls: GetTokenData and GetWalletData.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CardaLabs/sdk/internal/aggregator"
	"github.com/CardaLabs/sdk/internal/cache"
	"github.com/CardaLabs/sdk/internal/config"
	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/internal/metrics"
	"github.com/CardaLabs/sdk/internal/providers"
	"github.com/CardaLabs/sdk/internal/resilience"
	"github.com/CardaLabs/sdk/internal/router"
	"github.com/CardaLabs/sdk/pkg/logger"
)

// Version is the SDK release version.
const Version = "0.1.0"

// Client is the aggregation facade. Safe for concurrent use.
type Client struct {
	cfg        *config.Config
	log        *logger.Logger
	cache      cache.Cache
	router     *router.Router
	aggregator *aggregator.Aggregator
	refresher  *Refresher
	events     *eventBus
}

// New builds a Client from configuration, registering every enabled
// built-in provider. Passing nil uses defaults.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New("sdk", logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	var store cache.Cache
	if cfg.Cache.Redis.Enabled {
		store = cache.NewRedis(cache.RedisOptions{
			Addr:       cfg.Cache.Redis.Addr,
			Password:   cfg.Cache.Redis.Password,
			DB:         cfg.Cache.Redis.DB,
			DefaultTTL: time.Duration(cfg.Cache.DefaultTTL),
			Logger:     log.WithField("component", "cache"),
		})
	} else {
		store = cache.NewMemory(cache.Options{
			MaxSize:       cfg.Cache.MaxSize,
			DefaultTTL:    time.Duration(cfg.Cache.DefaultTTL),
			SweepInterval: time.Duration(cfg.Cache.SweepInterval),
			Logger:        log.WithField("component", "cache"),
		})
	}

	fetchAll := true
	if cfg.Aggregation.FetchAllPriority != nil {
		fetchAll = *cfg.Aggregation.FetchAllPriority
	}

	rt := router.New(log.WithField("component", "router"))
	agg := aggregator.New(rt, aggregator.Config{
		Strategy: domain.AggregationStrategy{
			Routing:          domain.RoutingStrategy(orDefault(cfg.Aggregation.Routing, "priority")),
			Conflict:         domain.ConflictStrategy(orDefault(cfg.Aggregation.Conflict, "priority")),
			FetchAllPriority: fetchAll,
		},
		Timeout: time.Duration(cfg.Aggregation.Timeout),
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: time.Duration(cfg.Retry.InitialDelay),
			MaxDelay:     time.Duration(cfg.Retry.MaxDelay),
			Multiplier:   cfg.Retry.Multiplier,
			Jitter:       cfg.Retry.Jitter,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			RecoveryTime:     time.Duration(cfg.Breaker.RecoveryTime),
		},
	}, log.WithField("component", "aggregator"))

	c := &Client{
		cfg:        cfg,
		log:        log,
		cache:      store,
		router:     rt,
		aggregator: agg,
		events:     newEventBus(),
	}

	if err := c.registerBuiltins(); err != nil {
		store.Close()
		return nil, err
	}
	for field, order := range cfg.Priorities {
		rt.SetFieldPriority(field, order)
	}
	if cfg.Refresh.Enabled {
		c.refresher = newRefresher(c, cfg.Refresh, log.WithField("component", "refresher"))
		c.refresher.Start()
	}
	return c, nil
}

func (c *Client) registerBuiltins() error {
	for name, pc := range c.cfg.Providers {
		if !pc.Enabled {
			continue
		}
		plog := c.log.WithField("provider", name)
		var p providers.Provider
		switch name {
		case "blockfrost":
			p = providers.NewBlockfrost(plog)
		case "koios":
			p = providers.NewKoios(plog)
		case "coingecko":
			p = providers.NewCoinGecko(plog)
		default:
			return fmt.Errorf("unknown provider %q in config", name)
		}
		err := p.Initialize(context.Background(), providers.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Network: pc.Network,
		})
		if err != nil {
			c.log.WithError(err).Warnf("skipping provider %s", name)
			continue
		}
		if err := c.aggregator.RegisterProvider(p); err != nil {
			return err
		}
		c.log.WithField("provider", name).Info("provider registered")
	}
	return nil
}

// RegisterProvider adds an initialized provider implementation to routing.
func (c *Client) RegisterProvider(p providers.Provider) error {
	return c.aggregator.RegisterProvider(p)
}

// UnregisterProvider removes a provider from routing.
func (c *Client) UnregisterProvider(name string) {
	c.aggregator.UnregisterProvider(name)
}

// SetFieldPriority overrides the provider order consulted for a field.
func (c *Client) SetFieldPriority(field string, order []string) {
	c.router.SetFieldPriority(field, order)
}

// GetTokenData aggregates the requested token fields for a unit, serving
// from cache when a fresh entry covers the same field set. A nil or empty
// fields slice requests every token field.
func (c *Client) GetTokenData(ctx context.Context, unit string, fields []string, opts *domain.RequestOptions) (*domain.TokenResponse, error) {
	if unit == "" {
		return nil, fmt.Errorf("token unit is required")
	}
	if len(fields) == 0 {
		fields = domain.TokenFields
	}
	opts = normalizeOptions(opts)
	rid := uuid.NewString()
	c.events.emit(Event{Type: EventRequestStarted, Kind: domain.KindToken, ID: unit, RequestID: rid})

	key := cache.BuildTokenKey(unit, fields)
	if !opts.SkipCache {
		if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if hit := cachedTokenResponse(v); hit != nil {
				metrics.RecordCacheOutcome(string(domain.KindToken), true)
				hit.Metadata.CacheStatus = domain.CacheHit
				c.emitOutcome(domain.KindToken, unit, rid, &hit.Metadata, nil)
				return hit, nil
			}
		}
		metrics.RecordCacheOutcome(string(domain.KindToken), false)
	}

	resp := c.aggregator.AggregateTokenData(ctx, aggregator.Request{
		ID:        unit,
		RequestID: rid,
		Fields:    fields,
		Options:   opts,
	})
	if !opts.SkipCache && len(resp.Metadata.DataSources) > 0 {
		c.store(ctx, key, resp, opts)
	}
	c.emitOutcome(domain.KindToken, unit, rid, &resp.Metadata, resp.Errors)
	return resp, nil
}

// GetWalletData aggregates the requested wallet fields for an address. A nil
// or empty fields slice requests every wallet field.
func (c *Client) GetWalletData(ctx context.Context, address string, fields []string, opts *domain.RequestOptions) (*domain.WalletResponse, error) {
	if address == "" {
		return nil, fmt.Errorf("wallet address is required")
	}
	if len(fields) == 0 {
		fields = domain.WalletFields
	}
	opts = normalizeOptions(opts)
	rid := uuid.NewString()
	c.events.emit(Event{Type: EventRequestStarted, Kind: domain.KindWallet, ID: address, RequestID: rid})

	key := cache.BuildWalletKey(address, fields)
	if !opts.SkipCache {
		if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if hit := cachedWalletResponse(v); hit != nil {
				metrics.RecordCacheOutcome(string(domain.KindWallet), true)
				hit.Metadata.CacheStatus = domain.CacheHit
				c.emitOutcome(domain.KindWallet, address, rid, &hit.Metadata, nil)
				return hit, nil
			}
		}
		metrics.RecordCacheOutcome(string(domain.KindWallet), false)
	}

	resp := c.aggregator.AggregateWalletData(ctx, aggregator.Request{
		ID:        address,
		RequestID: rid,
		Fields:    fields,
		Options:   opts,
	})
	if !opts.SkipCache && len(resp.Metadata.DataSources) > 0 {
		c.store(ctx, key, resp, opts)
	}
	c.emitOutcome(domain.KindWallet, address, rid, &resp.Metadata, resp.Errors)
	return resp, nil
}

// cachedTokenResponse converts a cache hit into a caller-owned response. The
// memory backend returns the stored pointer, which is deep-copied so callers
// cannot mutate the cached entry; the Redis backend returns JSON bytes that
// decode into a fresh struct. Anything else is treated as a miss.
func cachedTokenResponse(v interface{}) *domain.TokenResponse {
	switch cached := v.(type) {
	case *domain.TokenResponse:
		return cached.Clone()
	case json.RawMessage:
		var resp domain.TokenResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return &resp
		}
	}
	return nil
}

func cachedWalletResponse(v interface{}) *domain.WalletResponse {
	switch cached := v.(type) {
	case *domain.WalletResponse:
		return cached.Clone()
	case json.RawMessage:
		var resp domain.WalletResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return &resp
		}
	}
	return nil
}

func (c *Client) store(ctx context.Context, key string, value interface{}, opts *domain.RequestOptions) {
	var err error
	if opts.CacheTTL > 0 {
		err = c.cache.SetTTL(ctx, key, value, opts.CacheTTL)
	} else {
		err = c.cache.Set(ctx, key, value)
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("failed to cache response")
	}
}

// InvalidateToken drops the cached entry for a unit and field set.
func (c *Client) InvalidateToken(ctx context.Context, unit string, fields []string) bool {
	if len(fields) == 0 {
		fields = domain.TokenFields
	}
	ok, _ := c.cache.Delete(ctx, cache.BuildTokenKey(unit, fields))
	return ok
}

// InvalidateWallet drops the cached entry for an address and field set.
func (c *Client) InvalidateWallet(ctx context.Context, address string, fields []string) bool {
	if len(fields) == 0 {
		fields = domain.WalletFields
	}
	ok, _ := c.cache.Delete(ctx, cache.BuildWalletKey(address, fields))
	return ok
}

func (c *Client) emitOutcome(kind domain.RecordKind, id, rid string, md *domain.ResponseMetadata, errs []domain.ProviderError) {
	for _, pe := range errs {
		c.events.emit(Event{
			Type:      EventProviderFailed,
			Kind:      kind,
			ID:        id,
			RequestID: rid,
			Provider:  pe.Provider,
			Error:     pe.Message,
		})
	}
	c.events.emit(Event{
		Type:      EventRequestCompleted,
		Kind:      kind,
		ID:        id,
		RequestID: rid,
		Sources:   md.DataSources,
		Elapsed:   md.ResponseTime,
	})
}

// Subscribe registers a cache event listener and returns an unsubscribe
// function. Only the in-memory cache emits events; with other backends the
// returned function is a no-op.
func (c *Client) Subscribe(fn cache.Listener) func() {
	if mem, ok := c.cache.(*cache.Memory); ok {
		return mem.Subscribe(fn)
	}
	return func() {}
}

// SubscribeEvents registers a request lifecycle listener and returns an
// unsubscribe function. Listeners are invoked synchronously on the calling
// goroutine; panics are contained.
func (c *Client) SubscribeEvents(fn func(Event)) func() {
	return c.events.subscribe(fn)
}

// RecentEvents returns the retained lifecycle event history, oldest first.
func (c *Client) RecentEvents() []Event {
	return c.events.recent()
}

// CacheStats returns a snapshot of cache counters.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// ProviderMetrics returns live routing metrics for every provider.
func (c *Client) ProviderMetrics() map[string]domain.ProviderMetrics {
	return c.router.AllMetrics()
}

// Health runs a health check against every registered provider.
func (c *Client) Health(ctx context.Context) map[string]domain.HealthStatus {
	return c.aggregator.Health(ctx)
}

// Close stops the refresher, destroys providers, and releases the cache.
func (c *Client) Close() error {
	if c.refresher != nil {
		c.refresher.Stop()
	}
	c.aggregator.Shutdown(context.Background())
	return c.cache.Close()
}

func normalizeOptions(opts *domain.RequestOptions) *domain.RequestOptions {
	if opts == nil {
		return &domain.RequestOptions{}
	}
	cp := *opts
	return &cp
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
