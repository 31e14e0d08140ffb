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

func newBlockfrost(t *testing.T, handler http.HandlerFunc) (*Blockfrost, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b := NewBlockfrost(nil)
	err := b.Initialize(context.Background(), Config{APIKey: "proj-test", BaseURL: srv.URL})
	require.NoError(t, err)
	return b, srv
}

func TestBlockfrostRequiresProjectID(t *testing.T) {
	b := NewBlockfrost(nil)
	err := b.Initialize(context.Background(), Config{})
	if sdkerrors.CodeOf(err) != sdkerrors.ErrCodeConfiguration {
		t.Fatalf("want CONFIGURATION, got %v", err)
	}
}

func TestBlockfrostGetTokenData(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj-test", r.Header.Get("project_id"))
		assert.Equal(t, "/assets/unit1", r.URL.Path)
		w.Write([]byte(`{
			"asset": "unit1",
			"quantity": "45000000000",
			"metadata": {
				"name": "TestCoin",
				"ticker": "TST",
				"decimals": 6,
				"description": "a test asset",
				"logo": "data:image/png;base64,xyz"
			}
		}`))
	})

	result := b.GetTokenData(context.Background(), "unit1", nil)
	require.True(t, result.Success)

	data := result.Data.(*domain.TokenData)
	require.NotNil(t, data.Name)
	assert.Equal(t, "TestCoin", *data.Name)
	assert.Equal(t, "TST", *data.Ticker)
	assert.Equal(t, 6, *data.Decimals)
	// 45000000000 raw units at 6 decimals.
	assert.InDelta(t, 45000.0, *data.TotalSupply, 0.001)
	assert.Equal(t, "unit1", data.Unit)
}

func TestBlockfrostOnchainNameFallback(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quantity": "1", "metadata": null, "onchain_metadata": {"name": "OnChain"}}`))
	})

	result := b.GetTokenData(context.Background(), "unit1", nil)
	require.True(t, result.Success)
	data := result.Data.(*domain.TokenData)
	require.NotNil(t, data.Name)
	assert.Equal(t, "OnChain", *data.Name)
}

func TestBlockfrostGetWalletData(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/addresses/addr1":
			w.Write([]byte(`{
				"stake_address": "stake1abc",
				"amount": [
					{"unit": "lovelace", "quantity": "2500000"},
					{"unit": "policyasset", "quantity": "10"}
				]
			}`))
		case "/addresses/addr1/total":
			w.Write([]byte(`{"tx_count": 42}`))
		default:
			http.NotFound(w, r)
		}
	})

	result := b.GetWalletData(context.Background(), "addr1", nil)
	require.True(t, result.Success)

	data := result.Data.(*domain.WalletData)
	assert.InDelta(t, 2.5, *data.AdaBalance, 0.0001)
	assert.Equal(t, "stake1abc", *data.StakeAddress)
	require.Len(t, data.Assets, 1)
	assert.Equal(t, "policyasset", data.Assets[0].Unit)
	assert.Equal(t, int64(42), *data.TransactionCount)
}

func TestBlockfrostTxCountFailureIsNotFatal(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/addresses/addr1" {
			w.Write([]byte(`{"amount": [{"unit": "lovelace", "quantity": "1000000"}]}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	result := b.GetWalletData(context.Background(), "addr1", nil)
	require.True(t, result.Success)
	data := result.Data.(*domain.WalletData)
	assert.Nil(t, data.TransactionCount)
	assert.NotNil(t, data.AdaBalance)
}

func TestBlockfrostErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		code   sdkerrors.ErrorCode
	}{
		{http.StatusUnauthorized, sdkerrors.ErrCodeAuthentication},
		{http.StatusForbidden, sdkerrors.ErrCodeAuthentication},
		{http.StatusNotFound, sdkerrors.ErrCodeValidation},
		{http.StatusTooManyRequests, sdkerrors.ErrCodeRateLimit},
		{http.StatusInternalServerError, sdkerrors.ErrCodeProvider},
	}
	for _, tc := range cases {
		b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		result := b.GetTokenData(context.Background(), "unit1", nil)
		require.False(t, result.Success)
		assert.Equal(t, tc.code, sdkerrors.CodeOf(result.Err), "status %d", tc.status)
	}
}

func TestBlockfrostRetryAfterPropagated(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	result := b.GetTokenData(context.Background(), "unit1", nil)
	require.False(t, result.Success)

	var e *sdkerrors.Error
	require.ErrorAs(t, result.Err, &e)
	assert.Equal(t, "blockfrost", e.Provider)
	assert.Equal(t, float64(7), e.RetryAfter.Seconds())
}

func TestBlockfrostHealthCheck(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"is_healthy": true}`))
	})

	status := b.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
	assert.Greater(t, status.ResponseTime.Nanoseconds(), int64(0))
}

func TestBlockfrostHistoricalData(t *testing.T) {
	b, _ := newBlockfrost(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/unit1/history", r.URL.Path)
		w.Write([]byte(`[
			{"tx_hash": "a", "action": "minted", "amount": "100"},
			{"tx_hash": "b", "action": "minted", "amount": "50"}
		]`))
	})

	history, err := b.GetHistoricalTokenData(context.Background(), "unit1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 100.0, *history[0].TotalSupply)

	_, err = b.GetHistoricalTokenData(context.Background(), "unit1", 0)
	assert.Equal(t, sdkerrors.ErrCodeValidation, sdkerrors.CodeOf(err))
}

func TestBlockfrostCapabilitiesDeclareNoPrice(t *testing.T) {
	caps := NewBlockfrost(nil).Capabilities()
	assert.False(t, caps.Supports(domain.FieldPrice, domain.KindToken))
	assert.True(t, caps.Supports(domain.FieldTotalSupply, domain.KindToken))
	assert.True(t, caps.Supports(domain.FieldAdaBalance, domain.KindWallet))
	assert.True(t, caps.Historical)
}
