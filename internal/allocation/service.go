// Package allocation tracks underlying funds lent out to the strategy
// authority and reconciles their return. Batch calls apply partial-failure
// semantics: items fail independently and earlier items are never rolled
// back.
package allocation

import (
	"context"
	"log/slog"
	"math/big"

	"go.opentelemetry.io/otel"

	alMetrics "vaultd/internal/allocation/metrics"
	"vaultd/internal/allocation/store"
	"vaultd/internal/audit"
	"vaultd/internal/domain"
	"vaultd/internal/token"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/tx"
	"vaultd/pkg/requestcontext"
)

var tracer = otel.Tracer("vaultd/allocation")

// AssetSource resolves asset ids to registered assets.
type AssetSource interface {
	Lookup(ctx context.Context, assetID uint64) (domain.Asset, error)
}

// StrategyGate resolves the effective caller and verifies the strategy role.
type StrategyGate interface {
	RequireStrategy(ctx context.Context, direct domain.Identity) (domain.Identity, error)
}

// EventPublisher records observable state changes.
type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service applies strategy-gated batch provide and receive operations.
type Service struct {
	store    store.Store
	assets   AssetSource
	tokens   token.Client
	gate     StrategyGate
	boundary tx.Boundary
	account  domain.Identity

	idempotency IdempotencyStore
	logger      *slog.Logger
	events      EventPublisher
	metrics     *alMetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *alMetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIdempotency enables duplicate-batch rejection for callers that send
// an idempotency key.
func WithIdempotency(keys IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = keys }
}

func New(
	st store.Store,
	assets AssetSource,
	tokens token.Client,
	gate StrategyGate,
	boundary tx.Boundary,
	account domain.Identity,
	opts ...Option,
) *Service {
	s := &Service{
		store:    st,
		assets:   assets,
		tokens:   tokens,
		gate:     gate,
		boundary: boundary,
		account:  account,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocated reports the outstanding allocation for an asset id.
func (s *Service) Allocated(ctx context.Context, assetID uint64) (*big.Int, error) {
	return s.store.Allocated(ctx, assetID)
}

// ProvideBatch lends underlying funds to the strategy authority. A length
// mismatch fails the whole call before any item; any other item failure
// yields false at that index and processing continues.
func (s *Service) ProvideBatch(ctx context.Context, caller domain.Identity, assetIDs []uint64, amounts []*big.Int, idempotencyKey string) ([]bool, error) {
	ctx, span := tracer.Start(ctx, "allocation.ProvideBatch")
	defer span.End()

	effective, err := s.gate.RequireStrategy(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(ctx, assetIDs, amounts, idempotencyKey); err != nil {
		return nil, err
	}

	results := make([]bool, len(assetIDs))
	underlyings := make([]domain.Identity, len(assetIDs))
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		for i, assetID := range assetIDs {
			underlyings[i], results[i] = s.provideOne(ctx, effective, assetID, amounts[i])
			s.countItem("provide", results[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordBatch(ctx, audit.ActionAllocationProvided, effective, assetIDs, amounts, underlyings, results)
	return results, nil
}

// provideOne moves one amount out to the strategy and records it as
// allocated. Failures are reported as a false result, never as an error.
func (s *Service) provideOne(ctx context.Context, strategy domain.Identity, assetID uint64, amount *big.Int) (domain.Identity, bool) {
	asset, err := s.assets.Lookup(ctx, assetID)
	if err != nil {
		return "", false
	}
	cash, err := s.tokens.BalanceOf(ctx, asset.Underlying, s.account)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read custodied balance", "asset_id", assetID, "error", err)
		return asset.Underlying, false
	}
	// Only uncommitted cash may leave custody. Shares already owed against
	// allocated funds must stay covered.
	if amount.Cmp(cash) > 0 {
		return asset.Underlying, false
	}
	if err := s.tokens.Transfer(ctx, asset.Underlying, strategy, amount); err != nil {
		s.logger.WarnContext(ctx, "failed to transfer to strategy", "asset_id", assetID, "error", err)
		return asset.Underlying, false
	}
	if err := s.store.Add(ctx, assetID, amount); err != nil {
		s.logger.ErrorContext(ctx, "funds sent but allocation not recorded", "asset_id", assetID, "error", err)
		return asset.Underlying, false
	}
	return asset.Underlying, true
}

// ReceiveBatch reconciles returned funds. The physical return is out of
// band; this call only reduces the outstanding allocation. After the id
// check an item always succeeds, with over-returns clamped at zero.
func (s *Service) ReceiveBatch(ctx context.Context, caller domain.Identity, assetIDs []uint64, amounts []*big.Int, idempotencyKey string) ([]bool, error) {
	ctx, span := tracer.Start(ctx, "allocation.ReceiveBatch")
	defer span.End()

	effective, err := s.gate.RequireStrategy(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(ctx, assetIDs, amounts, idempotencyKey); err != nil {
		return nil, err
	}

	results := make([]bool, len(assetIDs))
	underlyings := make([]domain.Identity, len(assetIDs))
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		for i, assetID := range assetIDs {
			asset, err := s.assets.Lookup(ctx, assetID)
			if err != nil {
				s.countItem("receive", false)
				continue
			}
			underlyings[i] = asset.Underlying
			clamped, err := s.store.Reduce(ctx, assetID, amounts[i])
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to reduce allocation", "asset_id", assetID, "error", err)
				s.countItem("receive", false)
				continue
			}
			if clamped && s.metrics != nil {
				s.metrics.OverReturnClamps.Inc()
			}
			results[i] = true
			s.countItem("receive", true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordBatch(ctx, audit.ActionAllocationReceived, effective, assetIDs, amounts, underlyings, results)
	return results, nil
}

// checkBatch applies the whole-call validations shared by both directions.
func (s *Service) checkBatch(ctx context.Context, assetIDs []uint64, amounts []*big.Int, idempotencyKey string) error {
	if len(assetIDs) != len(amounts) {
		return dErrors.New(dErrors.CodeBadRequest, "asset id and amount arrays differ in length")
	}
	if idempotencyKey != "" && s.idempotency != nil {
		fresh, err := s.idempotency.Reserve(ctx, idempotencyKey)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve idempotency key")
		}
		if !fresh {
			return dErrors.New(dErrors.CodeConflict, "batch already processed")
		}
	}
	return nil
}

func (s *Service) countItem(direction string, ok bool) {
	if s.metrics == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	s.metrics.BatchItems.WithLabelValues(direction, outcome).Inc()
}

func (s *Service) recordBatch(ctx context.Context, action audit.Action, actor domain.Identity, assetIDs []uint64, amounts []*big.Int, underlyings []domain.Identity, results []bool) {
	formatted := make([]string, len(amounts))
	for i, amount := range amounts {
		formatted[i] = domain.FormatAmount(amount)
	}
	s.logger.InfoContext(ctx, "allocation batch processed",
		"action", action,
		"items", len(assetIDs),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.events == nil {
		return
	}
	event := audit.Event{
		Action: action,
		Actor:  actor,
		Batch: &audit.BatchDetail{
			AssetIDs:    assetIDs,
			Amounts:     formatted,
			Underlyings: underlyings,
			Results:     results,
		},
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit event", "action", action, "error", err)
	}
}
