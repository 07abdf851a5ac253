// Package ledger implements the multi-asset share accounting: issuance and
// redemption of shares against each asset's pooled holdings, share
// transfers, allowances, and operator approvals.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"go.opentelemetry.io/otel"

	"vaultd/internal/audit"
	"vaultd/internal/domain"
	ledgermetrics "vaultd/internal/ledger/metrics"
	"vaultd/internal/ledger/store"
	"vaultd/internal/token"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/sentinel"
	"vaultd/pkg/platform/tx"
	"vaultd/pkg/requestcontext"
)

var tracer = otel.Tracer("vaultd/ledger")

// AssetSource resolves asset ids to registered assets.
type AssetSource interface {
	Lookup(ctx context.Context, assetID uint64) (domain.Asset, error)
}

// AllocationSource reports funds currently lent to the strategy authority.
type AllocationSource interface {
	Allocated(ctx context.Context, assetID uint64) (*big.Int, error)
}

// CallerResolver resolves the effective caller through the relayer seam.
type CallerResolver interface {
	Resolve(ctx context.Context, direct domain.Identity) (domain.Identity, error)
}

// EventPublisher records observable state changes.
type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Totals is the read-only financial snapshot of one asset id.
type Totals struct {
	AssetID     uint64   `json:"asset_id"`
	TotalSupply *big.Int `json:"-"`
	TotalAssets *big.Int `json:"-"`
	Cash        *big.Int `json:"-"`
	Allocated   *big.Int `json:"-"`
}

// Service orchestrates share accounting for all registered assets.
type Service struct {
	shares      store.Store
	assets      AssetSource
	allocations AllocationSource
	tokens      token.Client
	resolver    CallerResolver
	boundary    tx.Boundary
	account     domain.Identity

	logger  *slog.Logger
	events  EventPublisher
	metrics *ledgermetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. `account` is the identity under which the vault
// custodies underlying assets at the token service.
func New(
	shares store.Store,
	assets AssetSource,
	allocations AllocationSource,
	tokens token.Client,
	resolver CallerResolver,
	boundary tx.Boundary,
	account domain.Identity,
	opts ...Option,
) *Service {
	s := &Service{
		shares:      shares,
		assets:      assets,
		allocations: allocations,
		tokens:      tokens,
		resolver:    resolver,
		boundary:    boundary,
		account:     account,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TotalAssets reports assets under management for an asset id: custodied
// cash plus the amount currently allocated to the strategy.
func (s *Service) TotalAssets(ctx context.Context, assetID uint64) (*big.Int, error) {
	asset, err := s.assets.Lookup(ctx, assetID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totalsFor(ctx, asset)
	if err != nil {
		return nil, err
	}
	return totals.TotalAssets, nil
}

// Totals reports supply, assets under management, custodied cash, and the
// allocated amount for an asset id.
func (s *Service) Totals(ctx context.Context, assetID uint64) (Totals, error) {
	asset, err := s.assets.Lookup(ctx, assetID)
	if err != nil {
		return Totals{}, err
	}
	return s.totalsFor(ctx, asset)
}

func (s *Service) totalsFor(ctx context.Context, asset domain.Asset) (Totals, error) {
	cash, err := s.tokens.BalanceOf(ctx, asset.Underlying, s.account)
	if err != nil {
		return Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read custodied balance")
	}
	allocated, err := s.allocations.Allocated(ctx, asset.ID)
	if err != nil {
		return Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allocated amount")
	}
	supply, err := s.shares.TotalSupply(ctx, asset.ID)
	if err != nil {
		return Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total supply")
	}
	return Totals{
		AssetID:     asset.ID,
		TotalSupply: supply,
		TotalAssets: new(big.Int).Add(cash, allocated),
		Cash:        cash,
		Allocated:   allocated,
	}, nil
}

// ConvertToShares previews the shares minted for a deposit of `assets`.
func (s *Service) ConvertToShares(ctx context.Context, assetID uint64, assets *big.Int) (*big.Int, error) {
	asset, err := s.assets.Lookup(ctx, assetID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totalsFor(ctx, asset)
	if err != nil {
		return nil, err
	}
	return SharesFor(assets, totals.TotalSupply, totals.TotalAssets), nil
}

// ConvertToAssets previews the assets paid for redeeming `shares`.
func (s *Service) ConvertToAssets(ctx context.Context, assetID uint64, shares *big.Int) (*big.Int, error) {
	asset, err := s.assets.Lookup(ctx, assetID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totalsFor(ctx, asset)
	if err != nil {
		return nil, err
	}
	return AssetsFor(shares, totals.TotalSupply, totals.TotalAssets), nil
}

// Deposit pulls `assets` of the underlying from the effective caller and
// credits the receiver with the converted shares.
func (s *Service) Deposit(ctx context.Context, caller domain.Identity, assetID uint64, assets *big.Int, receiver domain.Identity) (*big.Int, error) {
	ctx, span := tracer.Start(ctx, "ledger.Deposit")
	defer span.End()

	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if receiver.IsZero() {
		receiver = effective
	}

	var minted *big.Int
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.assets.Lookup(ctx, assetID)
		if err != nil {
			return err
		}
		totals, err := s.totalsFor(ctx, asset)
		if err != nil {
			return err
		}
		shares := SharesFor(assets, totals.TotalSupply, totals.TotalAssets)
		if shares.Sign() == 0 {
			return dErrors.New(dErrors.CodeValidation, "deposit converts to zero shares")
		}
		if err := s.pull(ctx, asset.Underlying, effective, assets); err != nil {
			return err
		}
		if err := s.shares.Mint(ctx, asset.ID, receiver, shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint shares")
		}
		minted = shares
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordIssue(ctx, audit.ActionDeposit, effective, receiver, assetID, assets, minted)
	return minted, nil
}

// Mint issues exactly `shares` to the receiver, pulling the converted asset
// amount from the effective caller.
func (s *Service) Mint(ctx context.Context, caller domain.Identity, assetID uint64, shares *big.Int, receiver domain.Identity) (*big.Int, error) {
	ctx, span := tracer.Start(ctx, "ledger.Mint")
	defer span.End()

	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if receiver.IsZero() {
		receiver = effective
	}

	var pulled *big.Int
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.assets.Lookup(ctx, assetID)
		if err != nil {
			return err
		}
		totals, err := s.totalsFor(ctx, asset)
		if err != nil {
			return err
		}
		assets := AssetsFor(shares, totals.TotalSupply, totals.TotalAssets)
		if assets.Sign() == 0 {
			return dErrors.New(dErrors.CodeValidation, "mint converts to zero assets")
		}
		if err := s.pull(ctx, asset.Underlying, effective, assets); err != nil {
			return err
		}
		if err := s.shares.Mint(ctx, asset.ID, receiver, shares); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint shares")
		}
		pulled = assets
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordIssue(ctx, audit.ActionMint, effective, receiver, assetID, pulled, shares)
	return pulled, nil
}

// Withdraw pays out exactly `assets` of the underlying to the receiver,
// burning the converted shares from the owner.
func (s *Service) Withdraw(ctx context.Context, caller domain.Identity, assetID uint64, assets *big.Int, receiver, owner domain.Identity) (*big.Int, error) {
	ctx, span := tracer.Start(ctx, "ledger.Withdraw")
	defer span.End()

	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if receiver.IsZero() {
		receiver = effective
	}
	if owner.IsZero() {
		owner = effective
	}

	var burned *big.Int
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.assets.Lookup(ctx, assetID)
		if err != nil {
			return err
		}
		totals, err := s.totalsFor(ctx, asset)
		if err != nil {
			return err
		}
		shares := SharesFor(assets, totals.TotalSupply, totals.TotalAssets)
		if shares.Sign() == 0 {
			return dErrors.New(dErrors.CodeValidation, "withdrawal converts to zero shares")
		}
		if err := s.burnAndPay(ctx, asset, totals, effective, owner, receiver, shares, assets); err != nil {
			return err
		}
		burned = shares
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordRedeem(ctx, audit.ActionWithdraw, effective, receiver, owner, assetID, assets, burned)
	return burned, nil
}

// Redeem burns exactly `shares` from the owner and pays the converted asset
// amount to the receiver.
func (s *Service) Redeem(ctx context.Context, caller domain.Identity, assetID uint64, shares *big.Int, receiver, owner domain.Identity) (*big.Int, error) {
	ctx, span := tracer.Start(ctx, "ledger.Redeem")
	defer span.End()

	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	if receiver.IsZero() {
		receiver = effective
	}
	if owner.IsZero() {
		owner = effective
	}

	var paid *big.Int
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		asset, err := s.assets.Lookup(ctx, assetID)
		if err != nil {
			return err
		}
		totals, err := s.totalsFor(ctx, asset)
		if err != nil {
			return err
		}
		assets := AssetsFor(shares, totals.TotalSupply, totals.TotalAssets)
		if assets.Sign() == 0 {
			return dErrors.New(dErrors.CodeValidation, "redemption converts to zero assets")
		}
		if err := s.burnAndPay(ctx, asset, totals, effective, owner, receiver, shares, assets); err != nil {
			return err
		}
		paid = assets
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordRedeem(ctx, audit.ActionRedeem, effective, receiver, owner, assetID, paid, shares)
	return paid, nil
}

// burnAndPay performs the delegation check, the liquidity check, the burn,
// and only then the external payout. Burn-before-pay is load-bearing: a
// reentrant call arriving during the transfer must observe the decremented
// balances.
func (s *Service) burnAndPay(ctx context.Context, asset domain.Asset, totals Totals, effective, owner, receiver domain.Identity, shares, assets *big.Int) error {
	if assets.Cmp(totals.Cash) > 0 {
		// Funds lent to the strategy are part of assets under management
		// but are not physically present to pay out.
		if s.metrics != nil {
			s.metrics.LiquidityShortfalls.Inc()
		}
		return dErrors.New(dErrors.CodeInvariantViolation, "insufficient liquidity: owed assets exceed custodied cash")
	}
	if effective != owner {
		if err := s.spendDelegation(ctx, asset.ID, owner, effective, shares); err != nil {
			return err
		}
	}
	if err := s.shares.Burn(ctx, asset.ID, owner, shares); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.New(dErrors.CodeForbidden, "owner holds insufficient shares")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn shares")
	}
	if err := s.tokens.Transfer(ctx, asset.Underlying, receiver, assets); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to pay out assets")
	}
	return nil
}

// spendDelegation authorizes a non-owner caller: an operator approval grants
// unlimited rights, otherwise a sufficient allowance is consumed.
func (s *Service) spendDelegation(ctx context.Context, assetID uint64, owner, spender domain.Identity, shares *big.Int) error {
	operator, err := s.shares.IsOperator(ctx, owner, spender)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read operator approval")
	}
	if operator {
		return nil
	}
	if err := s.shares.SpendAllowance(ctx, assetID, owner, spender, shares); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.New(dErrors.CodeForbidden, "insufficient allowance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to spend allowance")
	}
	return nil
}

// Transfer moves shares from the effective caller to another holder.
func (s *Service) Transfer(ctx context.Context, caller domain.Identity, assetID uint64, to domain.Identity, shares *big.Int) error {
	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	return s.transfer(ctx, effective, assetID, effective, to, shares)
}

// TransferFrom moves shares between holders on behalf of the owner, applying
// the same allowance/operator check as delegated redemption.
func (s *Service) TransferFrom(ctx context.Context, caller domain.Identity, assetID uint64, from, to domain.Identity, shares *big.Int) error {
	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	return s.transfer(ctx, effective, assetID, from, to, shares)
}

func (s *Service) transfer(ctx context.Context, effective domain.Identity, assetID uint64, from, to domain.Identity, shares *big.Int) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "transfer receiver is required")
	}
	if shares.Sign() <= 0 {
		return dErrors.New(dErrors.CodeValidation, "transfer of zero shares")
	}
	err := s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.assets.Lookup(ctx, assetID); err != nil {
			return err
		}
		if effective != from {
			if err := s.spendDelegation(ctx, assetID, from, effective, shares); err != nil {
				return err
			}
		}
		if err := s.shares.Move(ctx, assetID, from, to, shares); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return dErrors.New(dErrors.CodeForbidden, "insufficient share balance")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to move shares")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Transfers.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionTransfer,
		Actor:    effective,
		AssetID:  assetID,
		Shares:   domain.FormatAmount(shares),
		Receiver: to,
		Owner:    from,
	})
	return nil
}

// Approve sets the spender's allowance over the effective caller's shares.
// The unlimited sentinel is never decremented by delegated burns.
func (s *Service) Approve(ctx context.Context, caller domain.Identity, assetID uint64, spender domain.Identity, amount *big.Int) error {
	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if spender.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "spender is required")
	}
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.assets.Lookup(ctx, assetID); err != nil {
			return err
		}
		return s.shares.SetAllowance(ctx, assetID, effective, spender, amount)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, audit.Event{
		Action:  audit.ActionApproval,
		Actor:   effective,
		AssetID: assetID,
		Shares:  domain.FormatAmount(amount),
		Owner:   effective,
		Detail:  spender.String(),
	})
	return nil
}

// SetOperator grants or revokes unlimited delegated-transfer rights across
// all asset ids for the effective caller's shares.
func (s *Service) SetOperator(ctx context.Context, caller domain.Identity, operator domain.Identity, approved bool) error {
	effective, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if operator.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "operator is required")
	}
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		return s.shares.SetOperator(ctx, effective, operator, approved)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionOperatorSet,
		Actor:  effective,
		Owner:  effective,
		Detail: operator.String(),
	})
	return nil
}

// BalanceOf reports a holder's share balance for an asset id.
func (s *Service) BalanceOf(ctx context.Context, assetID uint64, holder domain.Identity) (*big.Int, error) {
	if _, err := s.assets.Lookup(ctx, assetID); err != nil {
		return nil, err
	}
	balance, err := s.shares.BalanceOf(ctx, assetID, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}

// AllowanceOf reports the spender's remaining allowance over the owner's
// shares for an asset id.
func (s *Service) AllowanceOf(ctx context.Context, assetID uint64, owner, spender domain.Identity) (*big.Int, error) {
	if _, err := s.assets.Lookup(ctx, assetID); err != nil {
		return nil, err
	}
	allowance, err := s.shares.Allowance(ctx, assetID, owner, spender)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowance")
	}
	return allowance, nil
}

// IsOperator reports whether operator holds a global approval from owner.
func (s *Service) IsOperator(ctx context.Context, owner, operator domain.Identity) (bool, error) {
	return s.shares.IsOperator(ctx, owner, operator)
}

// pull moves assets from the payer into vault custody.
func (s *Service) pull(ctx context.Context, underlying domain.Identity, payer domain.Identity, assets *big.Int) error {
	if err := s.tokens.TransferFrom(ctx, underlying, payer, s.account, assets); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.New(dErrors.CodeForbidden, "insufficient underlying balance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to pull assets")
	}
	return nil
}

func (s *Service) recordIssue(ctx context.Context, action audit.Action, actor, receiver domain.Identity, assetID uint64, assets, shares *big.Int) {
	if s.metrics != nil {
		s.metrics.Deposits.Inc()
	}
	s.logger.InfoContext(ctx, "shares issued",
		"asset_id", assetID,
		"assets", domain.FormatAmount(assets),
		"shares", domain.FormatAmount(shares),
		"receiver", receiver,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:   action,
		Actor:    actor,
		AssetID:  assetID,
		Assets:   domain.FormatAmount(assets),
		Shares:   domain.FormatAmount(shares),
		Receiver: receiver,
	})
}

func (s *Service) recordRedeem(ctx context.Context, action audit.Action, actor, receiver, owner domain.Identity, assetID uint64, assets, shares *big.Int) {
	if s.metrics != nil {
		s.metrics.Withdrawals.Inc()
	}
	s.logger.InfoContext(ctx, "shares redeemed",
		"asset_id", assetID,
		"assets", domain.FormatAmount(assets),
		"shares", domain.FormatAmount(shares),
		"owner", owner,
		"receiver", receiver,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:   action,
		Actor:    actor,
		AssetID:  assetID,
		Assets:   domain.FormatAmount(assets),
		Shares:   domain.FormatAmount(shares),
		Receiver: receiver,
		Owner:    owner,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit event", "action", event.Action, "error", err)
	}
}
