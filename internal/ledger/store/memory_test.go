package store

import (
	"context"
	"math/big"
	"testing"

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

const (
	alice = domain.Identity("alice")
	bob   = domain.Identity("bob")
)

func (s *MemoryStoreSuite) TestMintAndBurn() {
	s.Require().NoError(s.store.Mint(s.ctx, 1, alice, big.NewInt(100)))
	s.Require().NoError(s.store.Burn(s.ctx, 1, alice, big.NewInt(40)))

	balance, err := s.store.BalanceOf(s.ctx, 1, alice)
	s.Require().NoError(err)
	s.Equal("60", balance.String())

	supply, err := s.store.TotalSupply(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("60", supply.String())
}

func (s *MemoryStoreSuite) TestBurnBeyondBalance() {
	s.Require().NoError(s.store.Mint(s.ctx, 1, alice, big.NewInt(10)))

	err := s.store.Burn(s.ctx, 1, alice, big.NewInt(11))
	s.Require().ErrorIs(err, sentinel.ErrInsufficientFunds)

	balance, err := s.store.BalanceOf(s.ctx, 1, alice)
	s.Require().NoError(err)
	s.Equal("10", balance.String())
}

func (s *MemoryStoreSuite) TestMoveIsolatesAssets() {
	s.Require().NoError(s.store.Mint(s.ctx, 1, alice, big.NewInt(100)))
	s.Require().NoError(s.store.Mint(s.ctx, 2, alice, big.NewInt(7)))

	s.Require().NoError(s.store.Move(s.ctx, 1, alice, bob, big.NewInt(30)))

	bal, err := s.store.BalanceOf(s.ctx, 1, bob)
	s.Require().NoError(err)
	s.Equal("30", bal.String())

	other, err := s.store.BalanceOf(s.ctx, 2, alice)
	s.Require().NoError(err)
	s.Equal("7", other.String())

	err = s.store.Move(s.ctx, 2, alice, bob, big.NewInt(8))
	s.Require().ErrorIs(err, sentinel.ErrInsufficientFunds)
}

func (s *MemoryStoreSuite) TestAllowanceLifecycle() {
	allowance, err := s.store.Allowance(s.ctx, 1, alice, bob)
	s.Require().NoError(err)
	s.True(allowance.Sign() == 0)

	s.Require().NoError(s.store.SetAllowance(s.ctx, 1, alice, bob, big.NewInt(50)))
	s.Require().NoError(s.store.SpendAllowance(s.ctx, 1, alice, bob, big.NewInt(20)))

	allowance, err = s.store.Allowance(s.ctx, 1, alice, bob)
	s.Require().NoError(err)
	s.Equal("30", allowance.String())

	err = s.store.SpendAllowance(s.ctx, 1, alice, bob, big.NewInt(31))
	s.Require().ErrorIs(err, sentinel.ErrInsufficientFunds)
}

func (s *MemoryStoreSuite) TestUnlimitedAllowanceNeverDecrements() {
	s.Require().NoError(s.store.SetAllowance(s.ctx, 1, alice, bob, domain.Unlimited()))
	s.Require().NoError(s.store.SpendAllowance(s.ctx, 1, alice, bob, big.NewInt(1_000_000)))

	allowance, err := s.store.Allowance(s.ctx, 1, alice, bob)
	s.Require().NoError(err)
	s.True(domain.IsUnlimited(allowance))
}

func (s *MemoryStoreSuite) TestOperatorFlag() {
	approved, err := s.store.IsOperator(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.False(approved)

	s.Require().NoError(s.store.SetOperator(s.ctx, alice, bob, true))
	approved, err = s.store.IsOperator(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.True(approved)

	s.Require().NoError(s.store.SetOperator(s.ctx, alice, bob, false))
	approved, err = s.store.IsOperator(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.False(approved)
}
