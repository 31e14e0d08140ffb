package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
)

// apiClient is the HTTP layer shared by the REST adapters. It classifies
// transport and status failures into typed errors; retries, circuit breaking,
// and rate limiting are applied by the execution layer above, so the adapter
// client stays a single-shot caller.
type apiClient struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

func newAPIClient(baseURL string, headers map[string]string) *apiClient {
	return &apiClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		baseURL: baseURL,
		headers: headers,
	}
}

// getJSON issues a GET and parses the body with gjson.
func (c *apiClient) getJSON(ctx context.Context, path string) (gjson.Result, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil)
}

// postJSON issues a POST with a JSON body and parses the response.
func (c *apiClient) postJSON(ctx context.Context, path string, body []byte) (gjson.Result, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gjson.Result{}, sdkerrors.Wrap(err, sdkerrors.ErrCodeValidation, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, classifyStatus(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, sdkerrors.Wrap(err, sdkerrors.ErrCodeNetwork, "read response")
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, sdkerrors.New(sdkerrors.ErrCodeProvider, "invalid JSON response")
	}
	return gjson.ParseBytes(raw), nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return sdkerrors.Wrap(err, sdkerrors.ErrCodeConnectionTimeout, "request timed out")
	}
	return sdkerrors.Wrap(err, sdkerrors.ErrCodeNetwork, "request failed")
}

func classifyStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return sdkerrors.Newf(sdkerrors.ErrCodeAuthentication, "credentials rejected (%d)", resp.StatusCode)
	case http.StatusNotFound:
		return sdkerrors.New(sdkerrors.ErrCodeValidation, "resource not found")
	case http.StatusTooManyRequests:
		e := sdkerrors.New(sdkerrors.ErrCodeRateLimit, "rate limited by upstream")
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil {
				e = e.WithRetryAfter(time.Duration(seconds) * time.Second)
			}
		}
		return e
	case http.StatusBadRequest:
		return sdkerrors.New(sdkerrors.ErrCodeValidation, "bad request")
	default:
		return sdkerrors.Newf(sdkerrors.ErrCodeProvider, "unexpected status %d", resp.StatusCode)
	}
}
