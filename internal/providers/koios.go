package providers

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CardaLabs/sdk/internal/domain"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

const koiosMainnet = "https://api.koios.rest/api/v1"

// Koios adapts the Koios REST API, a community-run Cardano query layer.
// It overlaps with Blockfrost on token metadata and supply, which is what
// makes cross-provider conflict detection possible.
type Koios struct {
	api *apiClient
	log *logger.Logger
}

var _ Provider = (*Koios)(nil)

// NewKoios creates an uninitialized Koios adapter.
func NewKoios(log *logger.Logger) *Koios {
	if log == nil {
		log = logger.NewDefault("provider-koios")
	}
	return &Koios{log: log}
}

func (k *Koios) Name() string { return "koios" }

func (k *Koios) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		TokenFields: []string{
			domain.FieldName, domain.FieldTicker, domain.FieldDecimals,
			domain.FieldTotalSupply, domain.FieldHolders, domain.FieldDescription,
		},
		WalletFields: []string{
			domain.FieldAdaBalance, domain.FieldStakeAddress,
			domain.FieldRewardsBalance,
		},
		RateLimits: domain.RateLimits{RequestsPerSecond: 5, Burst: 10},
	}
}

func (k *Koios) Initialize(_ context.Context, cfg Config) error {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = koiosMainnet
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	k.api = newAPIClient(baseURL, headers)
	return nil
}

func (k *Koios) HealthCheck(ctx context.Context) domain.HealthStatus {
	if k.api == nil {
		return domain.HealthStatus{Healthy: false, LastError: "not initialized"}
	}

	start := time.Now()
	result, err := k.api.getJSON(ctx, "/tip")
	status := domain.HealthStatus{ResponseTime: time.Since(start)}
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Healthy = result.IsArray() && len(result.Array()) > 0
	return status
}

func (k *Koios) GetTokenData(ctx context.Context, unit string, _ *domain.RequestOptions) Result {
	if k.api == nil {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeConfiguration, "koios not initialized")}
	}

	policy, assetName := splitUnit(unit)
	body, _ := json.Marshal(map[string]interface{}{
		"_asset_list": [][]string{{policy, assetName}},
	})

	rows, err := k.api.postJSON(ctx, "/asset_info", body)
	if err != nil {
		return Result{Err: wrapProviderErr(err, k.Name())}
	}
	info := rows.Get("0")
	if !info.Exists() {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeValidation, "asset not known to koios").WithProvider(k.Name())}
	}

	data := &domain.TokenData{Unit: unit}
	decimals := 0

	registry := info.Get("token_registry_metadata")
	setIfString(registry.Get("name"), func(v string) { data.Name = &v })
	setIfString(registry.Get("ticker"), func(v string) { data.Ticker = &v })
	setIfString(registry.Get("description"), func(v string) { data.Description = &v })
	if d := registry.Get("decimals"); d.Exists() {
		decimals = int(d.Int())
		data.Decimals = &decimals
	}
	if data.Name == nil {
		setIfString(info.Get("asset_name_ascii"), func(v string) { data.Name = &v })
	}

	if supplyRaw := info.Get("total_supply"); supplyRaw.Exists() {
		if supply, err := strconv.ParseFloat(supplyRaw.String(), 64); err == nil {
			supply /= math.Pow10(decimals)
			data.TotalSupply = &supply
		}
	}

	// Holder count comes from the asset summary; losing it is not fatal.
	if summary, err := k.api.postJSON(ctx, "/asset_summary", body); err == nil {
		if wallets := summary.Get("0.staked_wallets"); wallets.Exists() {
			holders := wallets.Int() + summary.Get("0.unstaked_addresses").Int()
			data.Holders = &holders
		}
	}

	return Result{Success: true, Data: data}
}

func (k *Koios) GetWalletData(ctx context.Context, address string, _ *domain.RequestOptions) Result {
	if k.api == nil {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeConfiguration, "koios not initialized")}
	}

	body, _ := json.Marshal(map[string]interface{}{"_addresses": []string{address}})
	rows, err := k.api.postJSON(ctx, "/address_info", body)
	if err != nil {
		return Result{Err: wrapProviderErr(err, k.Name())}
	}
	info := rows.Get("0")
	if !info.Exists() {
		return Result{Err: sdkerrors.New(sdkerrors.ErrCodeValidation, "address not known to koios").WithProvider(k.Name())}
	}

	data := &domain.WalletData{Address: address}
	if balance := info.Get("balance"); balance.Exists() {
		if lovelace, err := strconv.ParseFloat(balance.String(), 64); err == nil {
			ada := lovelace / 1e6
			data.AdaBalance = &ada
		}
	}
	setIfString(info.Get("stake_address"), func(v string) { data.StakeAddress = &v })

	if stake := info.Get("stake_address"); stake.Exists() && stake.Type == gjson.String {
		accountBody, _ := json.Marshal(map[string]interface{}{"_stake_addresses": []string{stake.String()}})
		if accounts, err := k.api.postJSON(ctx, "/account_info", accountBody); err == nil {
			if rewards := accounts.Get("0.rewards_available"); rewards.Exists() {
				if lovelace, err := strconv.ParseFloat(rewards.String(), 64); err == nil {
					ada := lovelace / 1e6
					data.RewardsBalance = &ada
				}
			}
		}
	}

	return Result{Success: true, Data: data}
}

func (k *Koios) Destroy(context.Context) error {
	k.api = nil
	return nil
}

// splitUnit separates a Cardano asset unit into policy id (56 hex chars) and
// hex-encoded asset name.
func splitUnit(unit string) (policy, assetName string) {
	if len(unit) <= 56 {
		return unit, ""
	}
	return unit[:56], unit[56:]
}
