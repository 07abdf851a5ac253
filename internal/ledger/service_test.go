package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	allocationstore "vaultd/internal/allocation/store"
	"vaultd/internal/audit"
	"vaultd/internal/domain"
	"vaultd/internal/ledger/store"
	"vaultd/internal/token"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/tx"
)

const (
	vaultAccount = domain.Identity("vault")
	usdc         = domain.Identity("usdc")
	alice        = domain.Identity("alice")
	bob          = domain.Identity("bob")
	carol        = domain.Identity("carol")
)

// fakeAssets is a static asset source with one registered asset.
type fakeAssets struct {
	assets map[uint64]domain.Asset
}

func (f *fakeAssets) Lookup(_ context.Context, assetID uint64) (domain.Asset, error) {
	asset, ok := f.assets[assetID]
	if !ok {
		return domain.Asset{}, dErrors.New(dErrors.CodeNotFound, "unknown asset")
	}
	return asset, nil
}

// passResolver returns the direct caller unchanged.
type passResolver struct{}

func (passResolver) Resolve(_ context.Context, direct domain.Identity) (domain.Identity, error) {
	return direct, nil
}

// captureEvents records emitted events for assertions.
type captureEvents struct {
	events []audit.Event
}

func (c *captureEvents) Emit(_ context.Context, event audit.Event) error {
	c.events = append(c.events, event)
	return nil
}

type LedgerServiceSuite struct {
	suite.Suite
	shares  *store.InMemory
	alloc   *allocationstore.InMemory
	bank    *token.Bank
	events  *captureEvents
	service *Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.shares = store.NewInMemory()
	s.alloc = allocationstore.NewInMemory()
	s.bank = token.NewBank(vaultAccount)
	s.bank.RegisterAsset(usdc, 6)
	s.bank.Mint(usdc, alice, big.NewInt(1_000_000))
	s.bank.Mint(usdc, bob, big.NewInt(1_000_000))
	s.events = &captureEvents{}

	assets := &fakeAssets{assets: map[uint64]domain.Asset{
		1: {ID: 1, Underlying: usdc, Symbol: "USDC", Decimals: 6, Registered: true, CreatedAt: time.Now()},
	}}
	s.service = New(s.shares, assets, s.alloc, s.bank, passResolver{}, tx.NewExclusive(), vaultAccount,
		WithEventPublisher(s.events),
	)
}

func (s *LedgerServiceSuite) deposit(caller domain.Identity, amount int64) *big.Int {
	shares, err := s.service.Deposit(context.Background(), caller, 1, big.NewInt(amount), "")
	s.Require().NoError(err)
	return shares
}

// allocate simulates funds leaving custody for the strategy.
func (s *LedgerServiceSuite) allocate(amount int64) {
	ctx := context.Background()
	s.Require().NoError(s.bank.Transfer(ctx, usdc, carol, big.NewInt(amount)))
	s.Require().NoError(s.alloc.Add(ctx, 1, big.NewInt(amount)))
}

// =============================================================================
// Deposit and Mint
// =============================================================================

func (s *LedgerServiceSuite) TestDeposit() {
	ctx := context.Background()

	s.Run("bootstrap mints one to one", func() {
		shares := s.deposit(alice, 100)
		s.Equal("100", shares.String())

		balance, err := s.service.BalanceOf(ctx, 1, alice)
		s.NoError(err)
		s.Equal("100", balance.String())

		cash, err := s.bank.BalanceOf(ctx, usdc, vaultAccount)
		s.NoError(err)
		s.Equal("100", cash.String())
	})

	s.Run("unknown asset is rejected", func() {
		_, err := s.service.Deposit(ctx, alice, 99, big.NewInt(100), "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("credits a third-party receiver", func() {
		_, err := s.service.Deposit(ctx, alice, 1, big.NewInt(50), bob)
		s.NoError(err)

		balance, err := s.service.BalanceOf(ctx, 1, bob)
		s.NoError(err)
		s.Equal("50", balance.String())
	})

	s.Run("zero share conversion is rejected", func() {
		// Donated assets appreciate the vault so a one unit deposit
		// floors to zero shares.
		s.bank.Mint(usdc, vaultAccount, big.NewInt(1_000_000))
		_, err := s.service.Deposit(ctx, alice, 1, big.NewInt(1), "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LedgerServiceSuite) TestMint() {
	ctx := context.Background()
	s.deposit(alice, 100)

	s.Run("pulls the converted asset amount", func() {
		assets, err := s.service.Mint(ctx, bob, 1, big.NewInt(40), "")
		s.NoError(err)
		s.Equal("40", assets.String())

		balance, err := s.service.BalanceOf(ctx, 1, bob)
		s.NoError(err)
		s.Equal("40", balance.String())
	})

	s.Run("insufficient payer balance is rejected", func() {
		_, err := s.service.Mint(ctx, carol, 1, big.NewInt(10), "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Withdraw and Redeem
// =============================================================================

func (s *LedgerServiceSuite) TestRedeem() {
	ctx := context.Background()
	s.deposit(alice, 100)

	s.Run("round trip pays back the deposit", func() {
		assets, err := s.service.Redeem(ctx, alice, 1, big.NewInt(100), "", "")
		s.NoError(err)
		s.Equal("100", assets.String())

		balance, err := s.service.BalanceOf(ctx, 1, alice)
		s.NoError(err)
		s.Equal("0", balance.String())
	})
}

func (s *LedgerServiceSuite) TestLiquidityShortfall() {
	ctx := context.Background()
	s.deposit(alice, 100)
	s.allocate(60)

	s.Run("full redemption exceeds custodied cash", func() {
		_, err := s.service.Redeem(ctx, alice, 1, big.NewInt(100), "", "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		// The failed call left balances untouched.
		balance, err := s.service.BalanceOf(ctx, 1, alice)
		s.NoError(err)
		s.Equal("100", balance.String())
	})

	s.Run("partial redemption within cash succeeds", func() {
		assets, err := s.service.Redeem(ctx, alice, 1, big.NewInt(40), "", "")
		s.NoError(err)
		s.Equal("40", assets.String())
	})

	s.Run("allocated funds still count toward value", func() {
		totals, err := s.service.Totals(ctx, 1)
		s.NoError(err)
		s.Equal("60", totals.TotalAssets.String())
		s.Equal("0", totals.Cash.String())
		s.Equal("60", totals.Allocated.String())
	})
}

func (s *LedgerServiceSuite) TestWithdrawDelegation() {
	ctx := context.Background()
	s.deposit(alice, 100)

	s.Run("stranger without allowance is rejected", func() {
		_, err := s.service.Withdraw(ctx, bob, 1, big.NewInt(10), bob, alice)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("finite allowance is consumed by shares burned", func() {
		s.Require().NoError(s.service.Approve(ctx, alice, 1, bob, big.NewInt(30)))

		_, err := s.service.Withdraw(ctx, bob, 1, big.NewInt(20), bob, alice)
		s.NoError(err)

		remaining, err := s.service.AllowanceOf(ctx, 1, alice, bob)
		s.NoError(err)
		s.Equal("10", remaining.String())

		_, err = s.service.Withdraw(ctx, bob, 1, big.NewInt(20), bob, alice)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unlimited allowance is never decremented", func() {
		s.Require().NoError(s.service.Approve(ctx, alice, 1, bob, domain.Unlimited()))

		_, err := s.service.Withdraw(ctx, bob, 1, big.NewInt(20), bob, alice)
		s.NoError(err)

		remaining, err := s.service.AllowanceOf(ctx, 1, alice, bob)
		s.NoError(err)
		s.True(domain.IsUnlimited(remaining))
	})

	s.Run("operator bypasses allowance entirely", func() {
		s.Require().NoError(s.service.Approve(ctx, alice, 1, carol, big.NewInt(0)))
		s.Require().NoError(s.service.SetOperator(ctx, alice, carol, true))

		_, err := s.service.Withdraw(ctx, carol, 1, big.NewInt(10), carol, alice)
		s.NoError(err)

		remaining, err := s.service.AllowanceOf(ctx, 1, alice, carol)
		s.NoError(err)
		s.Equal("0", remaining.String())
	})
}

// =============================================================================
// Transfers
// =============================================================================

func (s *LedgerServiceSuite) TestTransfer() {
	ctx := context.Background()
	s.deposit(alice, 100)

	s.Run("moves shares between holders", func() {
		s.Require().NoError(s.service.Transfer(ctx, alice, 1, bob, big.NewInt(30)))

		from, err := s.service.BalanceOf(ctx, 1, alice)
		s.NoError(err)
		s.Equal("70", from.String())
		to, err := s.service.BalanceOf(ctx, 1, bob)
		s.NoError(err)
		s.Equal("30", to.String())
	})

	s.Run("insufficient balance is rejected", func() {
		err := s.service.Transfer(ctx, alice, 1, bob, big.NewInt(1000))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("delegated transfer honors allowance", func() {
		err := s.service.TransferFrom(ctx, carol, 1, alice, bob, big.NewInt(10))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		s.Require().NoError(s.service.Approve(ctx, alice, 1, carol, big.NewInt(10)))
		s.Require().NoError(s.service.TransferFrom(ctx, carol, 1, alice, bob, big.NewInt(10)))

		remaining, err := s.service.AllowanceOf(ctx, 1, alice, carol)
		s.NoError(err)
		s.Equal("0", remaining.String())
	})

	s.Run("zero amount is rejected", func() {
		err := s.service.Transfer(ctx, alice, 1, bob, big.NewInt(0))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Supply invariant
// =============================================================================

// Total supply equals the sum of balances after any interleaving of
// operations.
func (s *LedgerServiceSuite) TestSupplyMatchesBalances() {
	ctx := context.Background()

	s.deposit(alice, 100)
	s.deposit(bob, 57)
	s.Require().NoError(s.service.Transfer(ctx, alice, 1, carol, big.NewInt(13)))
	_, err := s.service.Redeem(ctx, bob, 1, big.NewInt(20), "", "")
	s.Require().NoError(err)

	supply, err := s.shares.TotalSupply(ctx, 1)
	s.Require().NoError(err)

	sum := new(big.Int)
	for _, holder := range []domain.Identity{alice, bob, carol} {
		balance, err := s.shares.BalanceOf(ctx, 1, holder)
		s.Require().NoError(err)
		sum.Add(sum, balance)
	}
	s.Equal(supply.String(), sum.String())
}

// =============================================================================
// Events
// =============================================================================

func (s *LedgerServiceSuite) TestEventsEmitted() {
	ctx := context.Background()
	s.deposit(alice, 100)
	s.Require().NoError(s.service.Transfer(ctx, alice, 1, bob, big.NewInt(5)))

	s.Require().Len(s.events.events, 2)
	s.Equal(audit.ActionDeposit, s.events.events[0].Action)
	s.Equal(audit.ActionTransfer, s.events.events[1].Action)
	s.Equal("5", s.events.events[1].Shares)
}

func (s *LedgerServiceSuite) TestIssuancePathsEmitDistinctActions() {
	ctx := context.Background()

	_, err := s.service.Deposit(ctx, alice, 1, big.NewInt(100), alice)
	s.Require().NoError(err)
	_, err = s.service.Mint(ctx, alice, 1, big.NewInt(50), alice)
	s.Require().NoError(err)
	_, err = s.service.Withdraw(ctx, alice, 1, big.NewInt(40), alice, alice)
	s.Require().NoError(err)
	_, err = s.service.Redeem(ctx, alice, 1, big.NewInt(30), alice, alice)
	s.Require().NoError(err)

	s.Require().Len(s.events.events, 4)
	s.Equal(audit.ActionDeposit, s.events.events[0].Action)
	s.Equal(audit.ActionMint, s.events.events[1].Action)
	s.Equal(audit.ActionWithdraw, s.events.events[2].Action)
	s.Equal(audit.ActionRedeem, s.events.events[3].Action)
}

// =============================================================================
// Payout ordering
// =============================================================================

// watchfulTokens wraps the bank so a test can observe ledger state at the
// moment the payout leg runs, or fail that leg outright.
type watchfulTokens struct {
	*token.Bank
	onTransfer  func()
	transferErr error
}

func (w *watchfulTokens) Transfer(ctx context.Context, asset domain.Identity, to domain.Identity, amount *big.Int) error {
	if w.onTransfer != nil {
		w.onTransfer()
	}
	if w.transferErr != nil {
		return w.transferErr
	}
	return w.Bank.Transfer(ctx, asset, to, amount)
}

func (s *LedgerServiceSuite) TestBurnPrecedesPayout() {
	ctx := context.Background()
	tokens := &watchfulTokens{Bank: s.bank}
	assets := &fakeAssets{assets: map[uint64]domain.Asset{
		1: {ID: 1, Underlying: usdc, Symbol: "USDC", Decimals: 6, Registered: true, CreatedAt: time.Now()},
	}}
	service := New(s.shares, assets, s.alloc, tokens, passResolver{}, tx.NewExclusive(), vaultAccount)

	_, err := service.Deposit(ctx, alice, 1, big.NewInt(100), alice)
	s.Require().NoError(err)

	s.Run("shares are gone before the payout leg runs", func() {
		var balanceAtPayout, supplyAtPayout string
		tokens.onTransfer = func() {
			balance, err := s.shares.BalanceOf(ctx, 1, alice)
			s.Require().NoError(err)
			supply, err := s.shares.TotalSupply(ctx, 1)
			s.Require().NoError(err)
			balanceAtPayout = balance.String()
			supplyAtPayout = supply.String()
		}

		_, err := service.Redeem(ctx, alice, 1, big.NewInt(40), alice, alice)
		s.Require().NoError(err)
		s.Equal("60", balanceAtPayout)
		s.Equal("60", supplyAtPayout)
	})

	s.Run("failed payout surfaces an error", func() {
		tokens.onTransfer = nil
		tokens.transferErr = errors.New("token service offline")

		_, err := service.Redeem(ctx, alice, 1, big.NewInt(10), alice, alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		// The burn already happened; the redemption is never reported
		// as successful with shares still outstanding.
		balance, berr := s.shares.BalanceOf(ctx, 1, alice)
		s.Require().NoError(berr)
		s.Equal("50", balance.String())
	})
}
