// Package relayer consumes the meta-transaction executor's single capability:
// reporting the original initiator of the call currently being relayed.
package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
	"vaultd/pkg/requestcontext"
)

// Client queries the relayer for the original initiator of the in-flight
// call. Any error means the relayer is unusable for that call.
type Client interface {
	Initiator(ctx context.Context) (domain.Identity, error)
}

// HTTPClient queries a relayer service over JSON. The request id is forwarded
// so the relayer can correlate the in-flight call.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) Initiator(ctx context.Context) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/initiator", nil)
	if err != nil {
		return "", err
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("relayer initiator: status %d", resp.StatusCode)
	}

	var out struct {
		Initiator string `json:"initiator"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode initiator: %w", err)
	}
	if out.Initiator == "" {
		return "", fmt.Errorf("relayer reported empty initiator")
	}
	return domain.NormalizeIdentity(out.Initiator), nil
}
