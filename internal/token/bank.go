package token

import (
	"context"
	"math/big"
	"sync"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

// Bank is a deterministic in-memory token ledger implementing Client. It
// backs development mode and tests; production deployments wire the HTTP
// client instead.
type Bank struct {
	account domain.Identity

	mu       sync.RWMutex
	balances map[domain.Identity]map[domain.Identity]*big.Int
	decimals map[domain.Identity]uint8
}

// NewBank builds a Bank whose Transfer calls debit the given vault account.
func NewBank(account domain.Identity) *Bank {
	return &Bank{
		account:  account,
		balances: make(map[domain.Identity]map[domain.Identity]*big.Int),
		decimals: make(map[domain.Identity]uint8),
	}
}

// RegisterAsset declares an asset with its decimal precision. Unknown assets
// fail every other call.
func (b *Bank) RegisterAsset(asset domain.Identity, decimals uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.balances[asset]; !ok {
		b.balances[asset] = make(map[domain.Identity]*big.Int)
	}
	b.decimals[asset] = decimals
}

// Mint credits holder with amount of asset.
func (b *Bank) Mint(asset domain.Identity, holder domain.Identity, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[domain.Identity]*big.Int)
		b.balances[asset] = holders
	}
	cur := holders[holder]
	if cur == nil {
		cur = new(big.Int)
	}
	holders[holder] = new(big.Int).Add(cur, amount)
}

func (b *Bank) Transfer(ctx context.Context, asset domain.Identity, to domain.Identity, amount *big.Int) error {
	return b.move(asset, b.account, to, amount)
}

func (b *Bank) TransferFrom(_ context.Context, asset domain.Identity, from, to domain.Identity, amount *big.Int) error {
	return b.move(asset, from, to, amount)
}

func (b *Bank) Decimals(_ context.Context, asset domain.Identity) (uint8, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.decimals[asset]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return d, nil
}

func (b *Bank) BalanceOf(_ context.Context, asset domain.Identity, holder domain.Identity) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	holders, ok := b.balances[asset]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	bal := holders[holder]
	if bal == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

func (b *Bank) move(asset domain.Identity, from, to domain.Identity, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return sentinel.ErrInsufficientFunds
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	holders, ok := b.balances[asset]
	if !ok {
		return sentinel.ErrNotFound
	}
	cur := holders[from]
	if cur == nil || cur.Cmp(amount) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	holders[from] = new(big.Int).Sub(cur, amount)
	dst := holders[to]
	if dst == nil {
		dst = new(big.Int)
	}
	holders[to] = new(big.Int).Add(dst, amount)
	return nil
}
