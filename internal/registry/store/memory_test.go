package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newAsset(underlying string) *domain.Asset {
	return &domain.Asset{
		Underlying: domain.Identity(underlying),
		Name:       underlying,
		Symbol:     underlying,
		Decimals:   18,
		CreatedAt:  time.Now(),
	}
}

func (s *MemoryStoreSuite) TestDenseIDAssignment() {
	first, err := s.store.Create(s.ctx, s.newAsset("usdc"))
	s.Require().NoError(err)
	second, err := s.store.Create(s.ctx, s.newAsset("weth"))
	s.Require().NoError(err)

	s.Equal(uint64(1), first)
	s.Equal(uint64(2), second)
}

func (s *MemoryStoreSuite) TestDuplicateUnderlying() {
	_, err := s.store.Create(s.ctx, s.newAsset("usdc"))
	s.Require().NoError(err)

	_, err = s.store.Create(s.ctx, s.newAsset("usdc"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The conflicted attempt does not advance the counter.
	next, err := s.store.Create(s.ctx, s.newAsset("weth"))
	s.Require().NoError(err)
	s.Equal(uint64(2), next)
}

func (s *MemoryStoreSuite) TestLookups() {
	id, err := s.store.Create(s.ctx, s.newAsset("usdc"))
	s.Require().NoError(err)

	byID, err := s.store.FindByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.Identity("usdc"), byID.Underlying)

	byUnderlying, err := s.store.FindByUnderlying(s.ctx, "usdc")
	s.Require().NoError(err)
	s.Equal(id, byUnderlying.ID)

	_, err = s.store.FindByID(s.ctx, 0)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByUnderlying(s.ctx, "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListOrder() {
	for _, u := range []string{"usdc", "weth", "dai"} {
		_, err := s.store.Create(s.ctx, s.newAsset(u))
		s.Require().NoError(err)
	}

	assets, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(assets, 3)
	s.Equal(domain.Identity("usdc"), assets[0].Underlying)
	s.Equal(domain.Identity("dai"), assets[2].Underlying)
}
