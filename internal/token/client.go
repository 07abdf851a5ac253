// Package token abstracts the underlying fungible-asset transfer capability.
// The vault only ever needs four calls: move funds out of its custody, pull
// funds into custody, read an asset's decimal precision, and read a balance.
package token

import (
	"context"
	"math/big"

	"vaultd/internal/domain"
)

// Client is the transfer capability for all underlying assets, acting on
// behalf of the vault's custody account. Implementations must be safe for
// concurrent use.
type Client interface {
	// Transfer moves amount of asset from the vault account to `to`.
	Transfer(ctx context.Context, asset domain.Identity, to domain.Identity, amount *big.Int) error
	// TransferFrom moves amount of asset from `from` into the vault account
	// (or to an arbitrary receiver for delegated pulls).
	TransferFrom(ctx context.Context, asset domain.Identity, from, to domain.Identity, amount *big.Int) error
	// Decimals reports the asset's decimal precision.
	Decimals(ctx context.Context, asset domain.Identity) (uint8, error)
	// BalanceOf reports holder's balance of asset. The vault reads its own
	// custodied cash this way, so out-of-band returns and donations are
	// observed without bookkeeping.
	BalanceOf(ctx context.Context, asset domain.Identity, holder domain.Identity) (*big.Int, error)
}
