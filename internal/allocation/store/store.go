package store

import (
	"context"
	"math/big"
)

// Store tracks, per asset id, the amount of underlying currently lent to
// the strategy authority.
type Store interface {
	// Allocated returns the outstanding allocation for an asset id.
	// Unknown ids report zero.
	Allocated(ctx context.Context, assetID uint64) (*big.Int, error)

	// Add increments the outstanding allocation.
	Add(ctx context.Context, assetID uint64, amount *big.Int) error

	// Reduce decrements the outstanding allocation, clamping at zero.
	// It reports whether clamping occurred.
	Reduce(ctx context.Context, assetID uint64, amount *big.Int) (clamped bool, err error)
}
