package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	sdk "github.com/CardaLabs/sdk"
	"github.com/CardaLabs/sdk/internal/domain"
	"github.com/CardaLabs/sdk/internal/metrics"
)

func newHandler(client *sdk.Client) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/tokens/{unit}", tokenHandler(client)).Methods(http.MethodGet)
	r.HandleFunc("/wallets/{address}", walletHandler(client)).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler(client)).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(client)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// requestOptions maps query parameters onto aggregation options. Supported:
// fields (comma separated), no_cache, providers (preferred order).
func requestOptions(r *http.Request) ([]string, *domain.RequestOptions) {
	q := r.URL.Query()

	var fields []string
	if raw := q.Get("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	opts := &domain.RequestOptions{}
	if q.Get("no_cache") == "true" {
		opts.SkipCache = true
	}
	if raw := q.Get("providers"); raw != "" {
		opts.PreferredProviders = strings.Split(raw, ",")
	}
	return fields, opts
}

func tokenHandler(client *sdk.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unit := mux.Vars(r)["unit"]
		fields, opts := requestOptions(r)

		resp, err := client.GetTokenData(r.Context(), unit, fields, opts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func walletHandler(client *sdk.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := mux.Vars(r)["address"]
		fields, opts := requestOptions(r)

		resp, err := client.GetWalletData(r.Context(), address, fields, opts)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func healthHandler(client *sdk.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := client.Health(r.Context())
		code := http.StatusOK
		for _, s := range statuses {
			if !s.Healthy {
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, code, map[string]interface{}{
			"status":    httpStatusWord(code),
			"providers": statuses,
		})
	}
}

func statsHandler(client *sdk.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cache":     client.CacheStats(),
			"providers": client.ProviderMetrics(),
			"version":   sdk.Version,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func httpStatusWord(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
