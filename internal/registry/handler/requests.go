package handler

import (
	"strings"

	"vaultd/internal/domain"
	dErrors "vaultd/pkg/domain-errors"
)

// RegisterAssetRequest is the HTTP request body for POST /assets.
type RegisterAssetRequest struct {
	Underlying string `json:"underlying"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`

	parsedUnderlying domain.Identity
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterAssetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Underlying = strings.TrimSpace(r.Underlying)
	if r.Underlying == "" {
		return dErrors.New(dErrors.CodeValidation, "underlying is required")
	}
	if len(r.Underlying) > 128 {
		return dErrors.New(dErrors.CodeValidation, "underlying must be at most 128 characters")
	}
	r.parsedUnderlying = domain.NormalizeIdentity(r.Underlying)
	r.Name = strings.TrimSpace(r.Name)
	r.Symbol = strings.TrimSpace(r.Symbol)
	return nil
}

// ParsedUnderlying returns the normalized underlying identity.
func (r *RegisterAssetRequest) ParsedUnderlying() domain.Identity {
	return r.parsedUnderlying
}
