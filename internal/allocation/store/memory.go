package store

import (
	"context"
	"math/big"
	"sync"
)

// InMemory is a map-backed Store for tests and single-node deployments.
type InMemory struct {
	mu        sync.RWMutex
	allocated map[uint64]*big.Int
}

func NewInMemory() *InMemory {
	return &InMemory{allocated: make(map[uint64]*big.Int)}
}

func (s *InMemory) Allocated(_ context.Context, assetID uint64) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.allocated[assetID]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (s *InMemory) Add(_ context.Context, assetID uint64, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.allocated[assetID]
	if !ok {
		current = new(big.Int)
	}
	s.allocated[assetID] = new(big.Int).Add(current, amount)
	return nil
}

func (s *InMemory) Reduce(_ context.Context, assetID uint64, amount *big.Int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.allocated[assetID]
	if !ok {
		current = new(big.Int)
	}
	next := new(big.Int).Sub(current, amount)
	if next.Sign() < 0 {
		s.allocated[assetID] = new(big.Int)
		return true, nil
	}
	s.allocated[assetID] = next
	return false, nil
}
