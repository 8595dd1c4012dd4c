// Package ledger provides the client for the distributed-ledger gateway that
// backs certificate issuance. The gateway exposes account, metadata,
// trustline, payment, and freeze operations; every successful call returns an
// opaque transaction reference.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/impactpool/milestone-cli/internal/resilience"
)

// MaxOperationsPerTx is the gateway's per-transaction operation limit.
// Metadata writes are batched so no single call exceeds it.
const MaxOperationsPerTx = 100

// Account is a ledger account identity created by the gateway. The gateway
// holds the signing key until RevokeSigningAuthority discards it.
type Account struct {
	Address string `json:"address"`
}

// MetadataEntry is one key/value record attached to an account.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Client defines the ledger gateway operations used by the issuance pipeline.
type Client interface {
	// CreateAccount generates a fresh single-use identity.
	CreateAccount(ctx context.Context) (*Account, error)
	// FundAccount funds the identity with enough base currency for
	// subsequent operations, returning the funding transaction reference.
	FundAccount(ctx context.Context, address string) (string, error)
	// AttachMetadata writes the entries to the account in one transaction.
	AttachMetadata(ctx context.Context, address string, entries []MetadataEntry) (string, error)
	// QueryTrustline reports whether the recipient already accepts the
	// (assetCode, issuer) pair. Absence is not an error.
	QueryTrustline(ctx context.Context, recipient, assetCode, issuer string) (bool, error)
	// TransferMinimalUnit sends the smallest representable unit of the
	// asset from issuer to recipient.
	TransferMinimalUnit(ctx context.Context, issuer, recipient, assetCode string) (string, error)
	// RevokeSigningAuthority permanently zeroes the account's signing
	// weight, freezing the asset supply.
	RevokeSigningAuthority(ctx context.Context, address string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default gateway URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit sets a per-second limit for gateway calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithCircuitBreaker installs a circuit breaker around gateway calls.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a ledger gateway client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type txResponse struct {
	TxRef string `json:"tx_ref"`
}

func (c *httpClient) CreateAccount(ctx context.Context) (*Account, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/accounts", nil, &resp); err != nil {
		return nil, eris.Wrap(err, "ledger: create account")
	}
	if resp.Address == "" {
		return nil, eris.New("ledger: create account returned empty address")
	}
	return &Account{Address: resp.Address}, nil
}

func (c *httpClient) FundAccount(ctx context.Context, address string) (string, error) {
	var resp txResponse
	path := fmt.Sprintf("/v1/accounts/%s/fund", url.PathEscape(address))
	if err := c.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", eris.Wrapf(err, "ledger: fund account %s", address)
	}
	return resp.TxRef, nil
}

func (c *httpClient) AttachMetadata(ctx context.Context, address string, entries []MetadataEntry) (string, error) {
	if len(entries) == 0 {
		return "", eris.New("ledger: no metadata entries")
	}
	if len(entries) > MaxOperationsPerTx {
		return "", eris.Errorf("ledger: %d metadata entries exceed the %d-operation limit",
			len(entries), MaxOperationsPerTx)
	}
	body := map[string]any{"entries": entries}
	var resp txResponse
	path := fmt.Sprintf("/v1/accounts/%s/data", url.PathEscape(address))
	if err := c.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", eris.Wrapf(err, "ledger: attach metadata to %s", address)
	}
	return resp.TxRef, nil
}

func (c *httpClient) QueryTrustline(ctx context.Context, recipient, assetCode, issuer string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	path := fmt.Sprintf("/v1/accounts/%s/trustlines?asset_code=%s&issuer=%s",
		url.PathEscape(recipient), url.QueryEscape(assetCode), url.QueryEscape(issuer))
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, eris.Wrapf(err, "ledger: query trustline %s/%s", assetCode, issuer)
	}
	return resp.Exists, nil
}

func (c *httpClient) TransferMinimalUnit(ctx context.Context, issuer, recipient, assetCode string) (string, error) {
	body := map[string]any{
		"issuer":     issuer,
		"recipient":  recipient,
		"asset_code": assetCode,
		"amount":     "0.0000001",
	}
	var resp txResponse
	if err := c.call(ctx, http.MethodPost, "/v1/payments", body, &resp); err != nil {
		return "", eris.Wrapf(err, "ledger: transfer %s to %s", assetCode, recipient)
	}
	return resp.TxRef, nil
}

func (c *httpClient) RevokeSigningAuthority(ctx context.Context, address string) (string, error) {
	var resp txResponse
	path := fmt.Sprintf("/v1/accounts/%s/freeze", url.PathEscape(address))
	if err := c.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", eris.Wrapf(err, "ledger: revoke signing authority %s", address)
	}
	return resp.TxRef, nil
}

// call performs one gateway request with rate limiting, retries for
// transient failures, and the optional circuit breaker.
func (c *httpClient) call(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	attempt := func(ctx context.Context) error {
		return c.doOnce(ctx, method, path, body, out)
	}

	if c.breaker != nil {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return resilience.Do(ctx, c.retry, attempt)
		})
	}
	return resilience.Do(ctx, c.retry, attempt)
}

func (c *httpClient) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := eris.Errorf("gateway returned %d: %s", resp.StatusCode, string(data))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
	}
	return nil
}
