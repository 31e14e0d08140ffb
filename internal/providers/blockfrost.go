package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CardaLabs/sdk/internal/domain"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

const blockfrostMainnet = "https://cardano-mainnet.blockfrost.io/api/v0"

// Blockfrost adapts the Blockfrost REST API. It supplies on-chain token
// metadata and wallet state; market prices come from other providers.
type Blockfrost struct {
	api *apiClient
	log *logger.Logger
}

var _ Provider = (*Blockfrost)(nil)

// NewBlockfrost creates an uninitialized Blockfrost adapter.
func NewBlockfrost(log *logger.Logger) *Blockfrost {
	if log == nil {
		log = logger.NewDefault("provider-blockfrost")
	}
	return &Blockfrost{log: log}
}

func (b *Blockfrost) Name() string { return "blockfrost" }

func (b *Blockfrost) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		TokenFields: []string{
			domain.FieldName, domain.FieldTicker, domain.FieldDecimals,
			domain.FieldTotalSupply, domain.FieldLogo, domain.FieldDescription,
		},
		WalletFields: []string{
			domain.FieldAdaBalance, domain.FieldAssets,
			domain.FieldStakeAddress, domain.FieldTransactionCount,
		},
		Historical: true,
		RateLimits: domain.RateLimits{RequestsPerSecond: 10, Burst: 50},
		Cost:       1,
	}
}

func (b *Blockfrost) Initialize(_ context.Context, cfg Config) error {
	if cfg.APIKey == "" {
		return sdkerrors.New(sdkerrors.ErrCodeConfiguration, "blockfrost project id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = blockfrostMainnet
	}
	b.api = newAPIClient(baseURL, map[string]string{"project_id": cfg.APIKey})
	return nil
}

func (b *Blockfrost) HealthCheck(ctx context.Context) domain.HealthStatus {
	if b.api == nil {
		return domain.HealthStatus{Healthy: false, LastError: "not initialized"}
	}

	start := time.Now()
	result, err := b.api.getJSON(ctx, "/health")
	status := domain.HealthStatus{ResponseTime: time.Since(start)}
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Healthy = result.Get("is_healthy").Bool()
	return status
}

func (b *Blockfrost) GetTokenData(ctx context.Context, unit string, _ *domain.RequestOptions) Result {
	if b.api == nil {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeConfiguration, "blockfrost not initialized")}
	}

	asset, err := b.api.getJSON(ctx, "/assets/"+unit)
	if err != nil {
		return Result{Err: wrapProviderErr(err, b.Name())}
	}

	data := &domain.TokenData{Unit: unit}
	decimals := 0

	if meta := asset.Get("metadata"); meta.Exists() && meta.Type != gjson.Null {
		setIfString(meta.Get("name"), func(v string) { data.Name = &v })
		setIfString(meta.Get("ticker"), func(v string) { data.Ticker = &v })
		setIfString(meta.Get("logo"), func(v string) { data.Logo = &v })
		setIfString(meta.Get("description"), func(v string) { data.Description = &v })
		if d := meta.Get("decimals"); d.Exists() {
			decimals = int(d.Int())
			data.Decimals = &decimals
		}
	}
	if data.Name == nil {
		if onchain := asset.Get("onchain_metadata.name"); onchain.Exists() {
			name := onchain.String()
			data.Name = &name
		}
	}

	if quantity := asset.Get("quantity"); quantity.Exists() {
		if supply, err := strconv.ParseFloat(quantity.String(), 64); err == nil {
			supply /= math.Pow10(decimals)
			data.TotalSupply = &supply
		}
	}

	return Result{Success: true, Data: data}
}

func (b *Blockfrost) GetWalletData(ctx context.Context, address string, _ *domain.RequestOptions) Result {
	if b.api == nil {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeConfiguration, "blockfrost not initialized")}
	}

	info, err := b.api.getJSON(ctx, "/addresses/"+address)
	if err != nil {
		return Result{Err: wrapProviderErr(err, b.Name())}
	}

	data := &domain.WalletData{Address: address}
	setIfString(info.Get("stake_address"), func(v string) { data.StakeAddress = &v })

	assets := make([]domain.AssetHolding, 0)
	info.Get("amount").ForEach(func(_, amount gjson.Result) bool {
		unit := amount.Get("unit").String()
		quantity := amount.Get("quantity").String()
		if unit == "lovelace" {
			if lovelace, err := strconv.ParseFloat(quantity, 64); err == nil {
				ada := lovelace / 1e6
				data.AdaBalance = &ada
			}
			return true
		}
		assets = append(assets, domain.AssetHolding{Unit: unit, Quantity: quantity})
		return true
	})
	data.Assets = assets

	// Separate endpoint; a failure here only loses the tx count field.
	if totals, err := b.api.getJSON(ctx, "/addresses/"+address+"/total"); err == nil {
		count := totals.Get("tx_count").Int()
		data.TransactionCount = &count
	}

	return Result{Success: true, Data: data}
}

// GetHistoricalTokenData returns daily supply observations reconstructed
// from asset mint/burn history.
func (b *Blockfrost) GetHistoricalTokenData(ctx context.Context, unit string, daysBack int) ([]domain.TokenData, error) {
	if b.api == nil {
		return nil, sdkerrors.New(sdkerrors.ErrCodeConfiguration, "blockfrost not initialized")
	}
	if daysBack <= 0 {
		return nil, sdkerrors.New(sdkerrors.ErrCodeValidation, "daysBack must be positive")
	}

	history, err := b.api.getJSON(ctx, fmt.Sprintf("/assets/%s/history?count=%d&order=desc", unit, daysBack))
	if err != nil {
		return nil, wrapProviderErr(err, b.Name())
	}

	var out []domain.TokenData
	history.ForEach(func(_, event gjson.Result) bool {
		if amount, err := strconv.ParseFloat(event.Get("amount").String(), 64); err == nil {
			out = append(out, domain.TokenData{
				Unit:        unit,
				TotalSupply: &amount,
				LastUpdated: time.Now().UTC(),
			})
		}
		return true
	})
	return out, nil
}

func (b *Blockfrost) Destroy(context.Context) error {
	b.api = nil
	return nil
}

func setIfString(r gjson.Result, set func(string)) {
	if r.Exists() && r.Type == gjson.String && r.String() != "" {
		set(r.String())
	}
}

// wrapProviderErr tags a structured error with the provider name, leaving
// its classification intact.
func wrapProviderErr(err error, provider string) error {
	var e *sdkerrors.Error
	if errors.As(err, &e) {
		return e.WithProvider(provider)
	}
	return sdkerrors.Wrap(err, sdkerrors.ErrCodeProvider, "provider call failed").WithProvider(provider)
}
