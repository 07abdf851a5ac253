package store

import (
	"context"
	"math/big"
	"sync"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

type balanceKey struct {
	assetID uint64
	holder  domain.Identity
}

type allowanceKey struct {
	assetID uint64
	owner   domain.Identity
	spender domain.Identity
}

type operatorKey struct {
	owner    domain.Identity
	operator domain.Identity
}

// InMemory keeps the share ledger in maps. It favors clarity over
// performance, mirroring how the persisted layout is keyed.
type InMemory struct {
	mu         sync.RWMutex
	supplies   map[uint64]*big.Int
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	operators  map[operatorKey]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		supplies:   make(map[uint64]*big.Int),
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		operators:  make(map[operatorKey]bool),
	}
}

func (s *InMemory) TotalSupply(_ context.Context, assetID uint64) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOrZero(s.supplies[assetID]), nil
}

func (s *InMemory) BalanceOf(_ context.Context, assetID uint64, holder domain.Identity) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOrZero(s.balances[balanceKey{assetID, holder}]), nil
}

func (s *InMemory) Mint(_ context.Context, assetID uint64, receiver domain.Identity, shares *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{assetID, receiver}
	s.balances[key] = new(big.Int).Add(copyOrZero(s.balances[key]), shares)
	s.supplies[assetID] = new(big.Int).Add(copyOrZero(s.supplies[assetID]), shares)
	return nil
}

func (s *InMemory) Burn(_ context.Context, assetID uint64, owner domain.Identity, shares *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{assetID, owner}
	balance := copyOrZero(s.balances[key])
	if balance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	s.balances[key] = balance.Sub(balance, shares)
	s.supplies[assetID] = new(big.Int).Sub(copyOrZero(s.supplies[assetID]), shares)
	return nil
}

func (s *InMemory) Move(_ context.Context, assetID uint64, from, to domain.Identity, shares *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromKey := balanceKey{assetID, from}
	balance := copyOrZero(s.balances[fromKey])
	if balance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	s.balances[fromKey] = balance.Sub(balance, shares)
	toKey := balanceKey{assetID, to}
	s.balances[toKey] = new(big.Int).Add(copyOrZero(s.balances[toKey]), shares)
	return nil
}

func (s *InMemory) Allowance(_ context.Context, assetID uint64, owner, spender domain.Identity) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOrZero(s.allowances[allowanceKey{assetID, owner, spender}]), nil
}

func (s *InMemory) SetAllowance(_ context.Context, assetID uint64, owner, spender domain.Identity, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[allowanceKey{assetID, owner, spender}] = new(big.Int).Set(amount)
	return nil
}

func (s *InMemory) SpendAllowance(_ context.Context, assetID uint64, owner, spender domain.Identity, shares *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowanceKey{assetID, owner, spender}
	allowance := copyOrZero(s.allowances[key])
	if domain.IsUnlimited(allowance) {
		return nil
	}
	if allowance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	s.allowances[key] = allowance.Sub(allowance, shares)
	return nil
}

func (s *InMemory) IsOperator(_ context.Context, owner, operator domain.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operators[operatorKey{owner, operator}], nil
}

func (s *InMemory) SetOperator(_ context.Context, owner, operator domain.Identity, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[operatorKey{owner, operator}] = approved
	return nil
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
