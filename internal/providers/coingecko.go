package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CardaLabs/sdk/internal/domain"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

const coingeckoBase = "https://api.coingecko.com/api/v3"

// CoinGecko adapts the CoinGecko market API. CoinGecko indexes coins by its
// own ids rather than Cardano asset units, so the adapter keeps a unit-to-id
// mapping seeded with well-known assets and extendable at runtime.
type CoinGecko struct {
	api *apiClient
	log *logger.Logger

	mu    sync.RWMutex
	idMap map[string]string
}

var _ Provider = (*CoinGecko)(nil)
var _ BatchProvider = (*CoinGecko)(nil)

// NewCoinGecko creates an uninitialized CoinGecko adapter.
func NewCoinGecko(log *logger.Logger) *CoinGecko {
	if log == nil {
		log = logger.NewDefault("provider-coingecko")
	}
	return &CoinGecko{
		log: log,
		idMap: map[string]string{
			"lovelace": "cardano",
		},
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		TokenFields: []string{
			domain.FieldPrice, domain.FieldMarketCap, domain.FieldVolume24h,
			domain.FieldPriceChange24h, domain.FieldName, domain.FieldTicker,
			domain.FieldCirculatingSupply,
		},
		Batch:      true,
		RateLimits: domain.RateLimits{RequestsPerSecond: 0.5, Burst: 5},
		Cost:       2,
	}
}

func (c *CoinGecko) Initialize(_ context.Context, cfg Config) error {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = coingeckoBase
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["x-cg-pro-api-key"] = cfg.APIKey
	}
	c.api = newAPIClient(baseURL, headers)
	return nil
}

// MapUnit registers a Cardano unit to CoinGecko id mapping.
func (c *CoinGecko) MapUnit(unit, coingeckoID string) {
	c.mu.Lock()
	c.idMap[unit] = coingeckoID
	c.mu.Unlock()
}

func (c *CoinGecko) coinID(unit string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.idMap[unit]; ok {
		return id
	}
	// Unmapped units pass through; callers may already use CoinGecko ids.
	return unit
}

func (c *CoinGecko) HealthCheck(ctx context.Context) domain.HealthStatus {
	if c.api == nil {
		return domain.HealthStatus{Healthy: false, LastError: "not initialized"}
	}

	start := time.Now()
	result, err := c.api.getJSON(ctx, "/ping")
	status := domain.HealthStatus{ResponseTime: time.Since(start)}
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Healthy = result.Get("gecko_says").Exists()
	return status
}

func (c *CoinGecko) GetTokenData(ctx context.Context, unit string, _ *domain.RequestOptions) Result {
	if c.api == nil {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeConfiguration, "coingecko not initialized")}
	}

	coin, err := c.api.getJSON(ctx,
		"/coins/"+c.coinID(unit)+"?localization=false&tickers=false&community_data=false&developer_data=false")
	if err != nil {
		return Result{Err: wrapProviderErr(err, c.Name())}
	}

	data := &domain.TokenData{Unit: unit}
	setIfString(coin.Get("name"), func(v string) { data.Name = &v })
	setIfString(coin.Get("symbol"), func(v string) {
		ticker := strings.ToUpper(v)
		data.Ticker = &ticker
	})

	market := coin.Get("market_data")
	if price := market.Get("current_price.usd"); price.Exists() {
		v := price.Float()
		data.Price = &v
	}
	if mcap := market.Get("market_cap.usd"); mcap.Exists() {
		v := mcap.Float()
		data.MarketCap = &v
	}
	if volume := market.Get("total_volume.usd"); volume.Exists() {
		v := volume.Float()
		data.Volume24h = &v
	}
	if change := market.Get("price_change_percentage_24h"); change.Exists() {
		v := change.Float()
		data.PriceChange24h = &v
	}
	if supply := market.Get("circulating_supply"); supply.Exists() {
		v := supply.Float()
		data.CirculatingSupply = &v
	}

	return Result{Success: true, Data: data}
}

// GetWalletData is unsupported; CoinGecko declares no wallet fields, so the
// router never sends wallet requests here.
func (c *CoinGecko) GetWalletData(_ context.Context, address string, _ *domain.RequestOptions) Result {
	return Result{Err: sdkerrors.Newf(sdkerrors.ErrCodeValidation,
		"coingecko does not supply wallet data for %s", address).WithProvider(c.Name())}
}

// GetTokenDataBatch resolves prices for several units in one markets call.
func (c *CoinGecko) GetTokenDataBatch(ctx context.Context, units []string, _ *domain.RequestOptions) map[string]Result {
	out := make(map[string]Result, len(units))
	if c.api == nil {
		err := sdkerrors.New(sdkerrors.ErrCodeConfiguration, "coingecko not initialized")
		for _, unit := range units {
			out[unit] = Result{Err: err}
		}
		return out
	}

	idToUnit := make(map[string]string, len(units))
	ids := make([]string, 0, len(units))
	for _, unit := range units {
		id := c.coinID(unit)
		idToUnit[id] = unit
		ids = append(ids, id)
	}

	rows, err := c.api.getJSON(ctx,
		fmt.Sprintf("/coins/markets?vs_currency=usd&ids=%s", strings.Join(ids, ",")))
	if err != nil {
		wrapped := wrapProviderErr(err, c.Name())
		for _, unit := range units {
			out[unit] = Result{Err: wrapped}
		}
		return out
	}

	for _, row := range rows.Array() {
		unit, ok := idToUnit[row.Get("id").String()]
		if !ok {
			continue
		}
		data := &domain.TokenData{Unit: unit}
		if price := row.Get("current_price"); price.Exists() {
			v := price.Float()
			data.Price = &v
		}
		if mcap := row.Get("market_cap"); mcap.Exists() {
			v := mcap.Float()
			data.MarketCap = &v
		}
		setIfString(row.Get("name"), func(v string) { data.Name = &v })
		out[unit] = Result{Success: true, Data: data}
	}

	for _, unit := range units {
		if _, ok := out[unit]; !ok {
			out[unit] = Result{Err: sdkerrors.Newf(sdkerrors.ErrCodeValidation,
				"unit %s not known to coingecko", unit).WithProvider(c.Name())}
		}
	}
	return out
}

func (c *CoinGecko) Destroy(context.Context) error {
	c.api = nil
	return nil
}
