// Package registry maps external asset identifiers to dense internal asset
// ids and records per-asset metadata. Registration is owner-gated and
// happens at most once per underlying asset.
package registry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	"vaultd/internal/audit"
	"vaultd/internal/domain"
	regmetrics "vaultd/internal/registry/metrics"
	"vaultd/internal/registry/store"
	"vaultd/internal/token"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/sentinel"
	"vaultd/pkg/platform/tx"
	"vaultd/pkg/requestcontext"
)

var tracer = otel.Tracer("vaultd/registry")

// OwnerGate authorizes owner-only operations, resolving the effective caller
// through the relayer first.
type OwnerGate interface {
	RequireOwner(ctx context.Context, direct domain.Identity) (domain.Identity, error)
}

// EventPublisher records observable state changes.
type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates asset registration and lookups.
type Service struct {
	store    store.Store
	tokens   token.Client
	gate     OwnerGate
	boundary tx.Boundary

	logger  *slog.Logger
	events  EventPublisher
	metrics *regmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(st store.Store, tokens token.Client, gate OwnerGate, boundary tx.Boundary, opts ...Option) *Service {
	s := &Service{
		store:    st,
		tokens:   tokens,
		gate:     gate,
		boundary: boundary,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register records a new asset class and returns its dense id. Fails with
// CodeConflict when the underlying asset is already registered; the id
// counter does not advance on a failed attempt.
func (s *Service) Register(ctx context.Context, caller domain.Identity, underlying domain.Identity, name, symbol string) (domain.Asset, error) {
	ctx, span := tracer.Start(ctx, "registry.Register")
	defer span.End()

	effective, err := s.gate.RequireOwner(ctx, caller)
	if err != nil {
		s.incrementRejected()
		return domain.Asset{}, err
	}
	if underlying.IsZero() {
		return domain.Asset{}, dErrors.New(dErrors.CodeValidation, "underlying asset is required")
	}
	if name == "" || symbol == "" {
		return domain.Asset{}, dErrors.New(dErrors.CodeValidation, "asset name and symbol are required")
	}

	var registered domain.Asset
	err = s.boundary.RunInTx(ctx, func(ctx context.Context) error {
		decimals, err := s.tokens.Decimals(ctx, underlying)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "underlying asset does not expose decimals")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query asset decimals")
		}

		asset := domain.Asset{
			Underlying: underlying,
			Name:       name,
			Symbol:     symbol,
			Decimals:   decimals,
			CreatedAt:  requestcontext.Now(ctx),
		}
		id, err := s.store.Create(ctx, &asset)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "underlying asset already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store asset")
		}
		asset.ID = id
		asset.Registered = true
		registered = asset
		return nil
	})
	if err != nil {
		s.incrementRejected()
		return domain.Asset{}, err
	}

	s.logger.InfoContext(ctx, "asset registered",
		"asset_id", registered.ID,
		"underlying", registered.Underlying,
		"symbol", registered.Symbol,
		"decimals", registered.Decimals,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionAssetRegistered,
		Actor:   effective,
		AssetID: registered.ID,
		Detail:  registered.Underlying.String(),
	})
	if s.metrics != nil {
		s.metrics.AssetsRegistered.Inc()
	}
	return registered, nil
}

// Lookup returns the asset for an id; id 0 is never found.
func (s *Service) Lookup(ctx context.Context, assetID uint64) (domain.Asset, error) {
	asset, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Asset{}, dErrors.New(dErrors.CodeNotFound, "unknown asset")
		}
		return domain.Asset{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

// Resolve maps an underlying asset identity back to its registered record via
// the store's reverse index.
func (s *Service) Resolve(ctx context.Context, underlying domain.Identity) (domain.Asset, error) {
	asset, err := s.store.FindByUnderlying(ctx, underlying)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Asset{}, dErrors.New(dErrors.CodeNotFound, "unknown asset")
		}
		return domain.Asset{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve asset")
	}
	return asset, nil
}

// Enumerate lists all registered assets in registration order.
func (s *Service) Enumerate(ctx context.Context) ([]domain.Asset, error) {
	assets, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	return assets, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit event", "action", event.Action, "error", err)
	}
}

func (s *Service) incrementRejected() {
	if s.metrics != nil {
		s.metrics.RegisterRejected.Inc()
	}
}
