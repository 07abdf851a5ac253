package testutil

import (
	"net/http"

	"vaultd/internal/domain"
	"vaultd/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, caller string) *http.Request {
	identity := domain.NormalizeIdentity(caller)
	if identity.IsZero() {
		return req
	}
	ctx := requestcontext.WithCaller(req.Context(), identity)
	return req.WithContext(ctx)
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}
