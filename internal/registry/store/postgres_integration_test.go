//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultd/internal/domain"
	"vaultd/internal/registry/store"
	"vaultd/pkg/platform/sentinel"
	"vaultd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "assets"))
}

func newAsset(underlying string) *domain.Asset {
	return &domain.Asset{
		Underlying: domain.Identity(underlying),
		Name:       underlying,
		Symbol:     underlying,
		Decimals:   18,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestCreateAssignsDenseIDs() {
	ctx := context.Background()

	first, err := s.store.Create(ctx, newAsset("usdc"))
	s.Require().NoError(err)
	second, err := s.store.Create(ctx, newAsset("weth"))
	s.Require().NoError(err)

	s.Equal(uint64(1), first)
	s.Equal(uint64(2), second)
}

func (s *PostgresStoreSuite) TestDuplicateUnderlyingConflicts() {
	ctx := context.Background()

	_, err := s.store.Create(ctx, newAsset("usdc"))
	s.Require().NoError(err)

	_, err = s.store.Create(ctx, newAsset("usdc"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The failed attempt must not burn an id.
	next, err := s.store.Create(ctx, newAsset("weth"))
	s.Require().NoError(err)
	s.Equal(uint64(2), next)
}

func (s *PostgresStoreSuite) TestLookups() {
	ctx := context.Background()

	id, err := s.store.Create(ctx, newAsset("usdc"))
	s.Require().NoError(err)

	byID, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.Identity("usdc"), byID.Underlying)

	byUnderlying, err := s.store.FindByUnderlying(ctx, domain.Identity("usdc"))
	s.Require().NoError(err)
	s.Equal(id, byUnderlying.ID)

	_, err = s.store.FindByID(ctx, 999)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByUnderlying(ctx, domain.Identity("ghost"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListPreservesOrder() {
	ctx := context.Background()

	for _, u := range []string{"usdc", "weth", "dai"} {
		_, err := s.store.Create(ctx, newAsset(u))
		s.Require().NoError(err)
	}

	assets, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(assets, 3)
	s.Equal(uint64(1), assets[0].ID)
	s.Equal(uint64(3), assets[2].ID)
}
