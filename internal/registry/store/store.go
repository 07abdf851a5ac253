package store

import (
	"context"

	"vaultd/internal/domain"
)

// Store persists registered assets. Create must assign the next dense id
// atomically and must not consume an id when the underlying asset is already
// present (sentinel.ErrConflict).
type Store interface {
	Create(ctx context.Context, asset *domain.Asset) (uint64, error)
	FindByID(ctx context.Context, assetID uint64) (domain.Asset, error)
	FindByUnderlying(ctx context.Context, underlying domain.Identity) (domain.Asset, error)
	// List returns assets in registration order.
	List(ctx context.Context) ([]domain.Asset, error)
}
