package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext drives a running vaultd instance over HTTP. It mints its own
// bearer tokens with the deployment's shared signing key so scenarios can
// impersonate any caller, owner and stranger alike.
type TestContext struct {
	baseURL    string
	signingKey []byte
	client     *http.Client

	caller     string
	lastStatus int
	lastBody   map[string]any
	assetID    uint64
}

func NewTestContext(baseURL, signingKey string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// CallAs switches the identity asserted by subsequent requests. An empty
// caller sends unauthenticated requests.
func (tc *TestContext) CallAs(caller string) {
	tc.caller = caller
}

func (tc *TestContext) POST(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) PUT(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// GetResponseField returns a top-level field of the last JSON response body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no response body captured")
	}
	value, ok := tc.lastBody[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q", field)
	}
	return value, nil
}

func (tc *TestContext) SetAssetID(id uint64) { tc.assetID = id }
func (tc *TestContext) AssetID() uint64      { return tc.assetID }

func (tc *TestContext) do(req *http.Request) error {
	if tc.caller != "" {
		token, err := tc.mintToken(tc.caller)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		tc.lastBody = body
	}
	return nil
}

func (tc *TestContext) mintToken(caller string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   caller,
		Issuer:    "vaultd",
		Audience:  []string{"vaultd"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	return token.SignedString(tc.signingKey)
}
