package store

import (
	"context"
	"sync"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

// InMemory keeps assets in an arena indexed by asset id with a reverse map
// from underlying identity, so enumeration never rescans and duplicate checks
// are O(1).
type InMemory struct {
	mu      sync.RWMutex
	assets  []domain.Asset // position i holds asset id i+1
	reverse map[domain.Identity]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{reverse: make(map[domain.Identity]uint64)}
}

func (s *InMemory) Create(_ context.Context, asset *domain.Asset) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reverse[asset.Underlying]; ok {
		return 0, sentinel.ErrConflict
	}
	id := uint64(len(s.assets)) + 1
	stored := *asset
	stored.ID = id
	stored.Registered = true
	s.assets = append(s.assets, stored)
	s.reverse[asset.Underlying] = id
	return id, nil
}

func (s *InMemory) FindByID(_ context.Context, assetID uint64) (domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if assetID == 0 || assetID > uint64(len(s.assets)) {
		return domain.Asset{}, sentinel.ErrNotFound
	}
	return s.assets[assetID-1], nil
}

func (s *InMemory) FindByUnderlying(_ context.Context, underlying domain.Identity) (domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.reverse[underlying]
	if !ok {
		return domain.Asset{}, sentinel.ErrNotFound
	}
	return s.assets[id-1], nil
}

func (s *InMemory) List(_ context.Context) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Asset{}, s.assets...), nil
}
