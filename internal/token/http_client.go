package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/circuit"
	"vaultd/pkg/platform/sentinel"
)

// HTTPClient talks to an external token service exposing the transfer
// capability over JSON. Non-2xx answers on transfer endpoints are reported as
// insufficient funds so the ledger treats them like any failed pull. A circuit
// breaker guards the service: while open, calls fail fast as unavailable
// instead of waiting out the request timeout.
type HTTPClient struct {
	baseURL string
	account domain.Identity
	http    *http.Client
	breaker *circuit.Breaker
}

func NewHTTPClient(baseURL string, account domain.Identity) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		account: account,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("token-service", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
}

type transferRequest struct {
	Asset  string `json:"asset"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (c *HTTPClient) Transfer(ctx context.Context, asset domain.Identity, to domain.Identity, amount *big.Int) error {
	return c.post(ctx, "/transfer", transferRequest{
		Asset:  asset.String(),
		From:   c.account.String(),
		To:     to.String(),
		Amount: domain.FormatAmount(amount),
	})
}

func (c *HTTPClient) TransferFrom(ctx context.Context, asset domain.Identity, from, to domain.Identity, amount *big.Int) error {
	return c.post(ctx, "/transfer", transferRequest{
		Asset:  asset.String(),
		From:   from.String(),
		To:     to.String(),
		Amount: domain.FormatAmount(amount),
	})
}

func (c *HTTPClient) Decimals(ctx context.Context, asset domain.Identity) (uint8, error) {
	var out struct {
		Decimals uint8 `json:"decimals"`
	}
	if err := c.get(ctx, fmt.Sprintf("/assets/%s/decimals", asset), &out); err != nil {
		return 0, err
	}
	return out.Decimals, nil
}

func (c *HTTPClient) BalanceOf(ctx context.Context, asset domain.Identity, holder domain.Identity) (*big.Int, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	if err := c.get(ctx, fmt.Sprintf("/assets/%s/balances/%s", asset, holder), &out); err != nil {
		return nil, err
	}
	return domain.ParseAmount(out.Balance)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("%w: token service circuit open", sentinel.ErrUnavailable)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	// Application-level rejections count as service health, not failure.
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return sentinel.ErrInsufficientFunds
	default:
		return fmt.Errorf("token service %s: status %d", path, resp.StatusCode)
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("%w: token service circuit open", sentinel.ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	if resp.StatusCode == http.StatusNotFound {
		return sentinel.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("token service %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
