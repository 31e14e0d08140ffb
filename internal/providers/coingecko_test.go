package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CardaLabs/sdk/internal/domain"
	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

func newCoinGecko(t *testing.T, handler http.HandlerFunc) *CoinGecko {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewCoinGecko(nil)
	require.NoError(t, c.Initialize(context.Background(), Config{BaseURL: srv.URL}))
	return c
}

func TestCoinGeckoGetTokenData(t *testing.T) {
	c := newCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		// lovelace maps to the cardano coin id.
		assert.Equal(t, "/coins/cardano", r.URL.Path)
		w.Write([]byte(`{
			"id": "cardano",
			"symbol": "ada",
			"name": "Cardano",
			"market_data": {
				"current_price": {"usd": 0.45},
				"market_cap": {"usd": 16000000000},
				"total_volume": {"usd": 350000000},
				"price_change_percentage_24h": -2.4,
				"circulating_supply": 35000000000
			}
		}`))
	})

	result := c.GetTokenData(context.Background(), "lovelace", nil)
	require.True(t, result.Success)

	data := result.Data.(*domain.TokenData)
	assert.Equal(t, "Cardano", *data.Name)
	assert.Equal(t, "ADA", *data.Ticker)
	assert.InDelta(t, 0.45, *data.Price, 0.0001)
	assert.InDelta(t, 16000000000, *data.MarketCap, 1)
	assert.InDelta(t, -2.4, *data.PriceChange24h, 0.0001)
	assert.InDelta(t, 35000000000, *data.CirculatingSupply, 1)
}

func TestCoinGeckoMapUnit(t *testing.T) {
	c := newCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/my-token", r.URL.Path)
		w.Write([]byte(`{"id": "my-token", "name": "Mine", "market_data": {}}`))
	})
	c.MapUnit("policy123asset", "my-token")

	result := c.GetTokenData(context.Background(), "policy123asset", nil)
	require.True(t, result.Success)
}

func TestCoinGeckoWalletUnsupported(t *testing.T) {
	c := NewCoinGecko(nil)
	result := c.GetWalletData(context.Background(), "addr1", nil)
	require.False(t, result.Success)
	assert.Equal(t, sdkerrors.ErrCodeValidation, sdkerrors.CodeOf(result.Err))
}

func TestCoinGeckoBatch(t *testing.T) {
	c := newCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "vs_currency=usd")
		w.Write([]byte(`[
			{"id": "cardano", "name": "Cardano", "current_price": 0.45, "market_cap": 16000000000}
		]`))
	})

	results := c.GetTokenDataBatch(context.Background(), []string{"lovelace", "unknownunit"}, nil)
	require.Len(t, results, 2)

	ada := results["lovelace"]
	require.True(t, ada.Success)
	data := ada.Data.(*domain.TokenData)
	assert.InDelta(t, 0.45, *data.Price, 0.0001)

	missing := results["unknownunit"]
	require.False(t, missing.Success)
	assert.Equal(t, sdkerrors.ErrCodeValidation, sdkerrors.CodeOf(missing.Err))
}

func TestCoinGeckoHealthCheck(t *testing.T) {
	c := newCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.Write([]byte(`{"gecko_says": "(V3) To the Moon!"}`))
	})
	assert.True(t, c.HealthCheck(context.Background()).Healthy)
}

func TestCoinGeckoCapabilities(t *testing.T) {
	caps := NewCoinGecko(nil).Capabilities()
	assert.True(t, caps.Supports(domain.FieldPrice, domain.KindToken))
	assert.False(t, caps.Supports(domain.FieldAdaBalance, domain.KindWallet))
	assert.True(t, caps.Batch)
}

func TestCoinGeckoInvalidJSON(t *testing.T) {
	c := newCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	result := c.GetTokenData(context.Background(), "lovelace", nil)
	require.False(t, result.Success)
	assert.Equal(t, sdkerrors.ErrCodeProvider, sdkerrors.CodeOf(result.Err))
}
