package store

import (
	"context"
	"math/big"

	"vaultd/internal/domain"
)

// Store persists the per-asset share ledger: balances, total supply,
// allowances, and operator approvals. Implementations must keep
// sum(balances) == total supply for every asset id; Mint and Burn are the
// only operations that touch supply.
type Store interface {
	TotalSupply(ctx context.Context, assetID uint64) (*big.Int, error)
	BalanceOf(ctx context.Context, assetID uint64, holder domain.Identity) (*big.Int, error)

	// Mint credits shares to receiver and increases total supply.
	Mint(ctx context.Context, assetID uint64, receiver domain.Identity, shares *big.Int) error
	// Burn debits shares from owner and decreases total supply.
	// Returns sentinel.ErrInsufficientFunds when owner holds fewer shares.
	Burn(ctx context.Context, assetID uint64, owner domain.Identity, shares *big.Int) error
	// Move transfers shares between holders without touching supply.
	Move(ctx context.Context, assetID uint64, from, to domain.Identity, shares *big.Int) error

	Allowance(ctx context.Context, assetID uint64, owner, spender domain.Identity) (*big.Int, error)
	SetAllowance(ctx context.Context, assetID uint64, owner, spender domain.Identity, amount *big.Int) error
	// SpendAllowance decrements a finite allowance by shares; the unlimited
	// sentinel is never decremented. Returns sentinel.ErrInsufficientFunds
	// when the allowance is smaller than shares.
	SpendAllowance(ctx context.Context, assetID uint64, owner, spender domain.Identity, shares *big.Int) error

	IsOperator(ctx context.Context, owner, operator domain.Identity) (bool, error)
	SetOperator(ctx context.Context, owner, operator domain.Identity, approved bool) error
}
