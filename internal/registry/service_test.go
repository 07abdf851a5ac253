package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vaultd/internal/audit"
	"vaultd/internal/domain"
	"vaultd/internal/registry/store"
	"vaultd/internal/token"
	"vaultd/internal/vault"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/tx"
)

const (
	vaultAccount = domain.Identity("vault")
	owner        = domain.Identity("owner")
	alice        = domain.Identity("alice")
	usdc         = domain.Identity("usdc")
	weth         = domain.Identity("weth")
)

type captureEvents struct {
	events []audit.Event
}

func (c *captureEvents) Emit(_ context.Context, event audit.Event) error {
	c.events = append(c.events, event)
	return nil
}

type RegistryServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	bank    *token.Bank
	events  *captureEvents
	service *Service
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.bank = token.NewBank(vaultAccount)
	s.bank.RegisterAsset(usdc, 6)
	s.bank.RegisterAsset(weth, 18)
	s.events = &captureEvents{}

	authority, err := vault.NewAuthority(owner)
	s.Require().NoError(err)

	s.service = New(s.store, s.bank, authority, tx.NewExclusive(),
		WithEventPublisher(s.events),
	)
}

func (s *RegistryServiceSuite) register(underlying domain.Identity, name, symbol string) domain.Asset {
	asset, err := s.service.Register(context.Background(), owner, underlying, name, symbol)
	s.Require().NoError(err)
	return asset
}

func (s *RegistryServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("assigns dense ids starting at one", func() {
		first := s.register(usdc, "USD Coin", "USDC")
		second := s.register(weth, "Wrapped Ether", "WETH")
		s.Equal(uint64(1), first.ID)
		s.Equal(uint64(2), second.ID)
		s.Equal(uint8(6), first.Decimals)
		s.Equal(uint8(18), second.Decimals)
	})

	s.Run("non-owner caller is rejected", func() {
		_, err := s.service.Register(ctx, alice, domain.Identity("dai"), "Dai", "DAI")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("duplicate underlying conflicts without consuming an id", func() {
		_, err := s.service.Register(ctx, owner, usdc, "USD Coin", "USDC")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		// The next successful registration still gets the next dense id.
		s.bank.RegisterAsset("dai", 18)
		third := s.register(domain.Identity("dai"), "Dai", "DAI")
		s.Equal(uint64(3), third.ID)
	})

	s.Run("unknown underlying is rejected", func() {
		_, err := s.service.Register(ctx, owner, domain.Identity("ghost"), "Ghost", "GHST")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing name or symbol is rejected", func() {
		_, err := s.service.Register(ctx, owner, weth, "", "WETH")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistryServiceSuite) TestLookupAndResolve() {
	ctx := context.Background()
	registered := s.register(usdc, "USD Coin", "USDC")

	s.Run("lookup by id", func() {
		asset, err := s.service.Lookup(ctx, registered.ID)
		s.NoError(err)
		s.Equal(usdc, asset.Underlying)
	})

	s.Run("id zero is never found", func() {
		_, err := s.service.Lookup(ctx, 0)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("resolve by underlying", func() {
		asset, err := s.service.Resolve(ctx, usdc)
		s.NoError(err)
		s.Equal(registered.ID, asset.ID)
	})

	s.Run("unregistered underlying is not found", func() {
		_, err := s.service.Resolve(ctx, domain.Identity("ghost"))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("enumerate preserves registration order", func() {
		second := s.register(weth, "Wrapped Ether", "WETH")

		assets, err := s.service.Enumerate(ctx)
		s.NoError(err)
		s.Require().Len(assets, 2)
		s.Equal(registered.ID, assets[0].ID)
		s.Equal(second.ID, assets[1].ID)
	})
}

func (s *RegistryServiceSuite) TestRegisterEmitsEvent() {
	asset := s.register(usdc, "USD Coin", "USDC")

	s.Require().Len(s.events.events, 1)
	s.Equal(audit.ActionAssetRegistered, s.events.events[0].Action)
	s.Equal(asset.ID, s.events.events[0].AssetID)
}
