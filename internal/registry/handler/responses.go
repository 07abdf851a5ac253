package handler

import (
	"time"

	"vaultd/internal/domain"
)

// AssetResponse is the HTTP shape of a registered asset.
type AssetResponse struct {
	ID         uint64    `json:"id"`
	Underlying string    `json:"underlying"`
	Name       string    `json:"name,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Decimals   uint8     `json:"decimals"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromAsset converts a domain asset to its HTTP response.
func FromAsset(asset domain.Asset) AssetResponse {
	return AssetResponse{
		ID:         asset.ID,
		Underlying: asset.Underlying.String(),
		Name:       asset.Name,
		Symbol:     asset.Symbol,
		Decimals:   asset.Decimals,
		CreatedAt:  asset.CreatedAt,
	}
}

// ResolveResponse reports the asset id for an underlying, zero when the
// underlying is not registered.
type ResolveResponse struct {
	ID uint64 `json:"id"`
}
