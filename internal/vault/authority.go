// Package vault owns the privileged-role state and the caller-resolution
// seam. All role checks live here so no other package compares identities ad
// hoc.
package vault

import (
	"context"
	"log/slog"
	"sync"

	"vaultd/internal/audit"
	"vaultd/internal/domain"
	"vaultd/internal/relayer"
	rolestore "vaultd/internal/vault/store"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/requestcontext"
)

// Roles is a read-only snapshot of the authorization context.
type Roles struct {
	Owner             domain.Identity `json:"owner"`
	StrategyAuthority domain.Identity `json:"strategy_authority"`
	Relayer           domain.Identity `json:"relayer"`
}

// EventPublisher records role changes.
type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Authority is the single authorization context: the owning authority, the
// strategy authority, and the optional relayer. Every privileged check and
// every effective-caller resolution goes through it.
type Authority struct {
	mu       sync.RWMutex
	owner    domain.Identity
	strategy domain.Identity
	relayer  domain.Identity

	relayerClient relayer.Client
	store         rolestore.Store
	logger        *slog.Logger
	events        EventPublisher
}

type Option func(a *Authority)

func WithStrategyAuthority(strategy domain.Identity) Option {
	return func(a *Authority) { a.strategy = strategy }
}

func WithRelayerClient(client relayer.Client) Option {
	return func(a *Authority) { a.relayerClient = client }
}

// WithRoleStore persists role assignments so they survive restarts. Restore
// must be called once after construction to adopt saved roles.
func WithRoleStore(store rolestore.Store) Option {
	return func(a *Authority) { a.store = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(a *Authority) { a.events = publisher }
}

// NewAuthority builds the authorization context with the initial owner.
func NewAuthority(owner domain.Identity, opts ...Option) (*Authority, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "owning authority is required")
	}
	a := &Authority{owner: owner, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Restore loads persisted role assignments. On first boot no row exists yet
// and the configured roles are written as the initial assignment; afterwards
// the saved roles win over configuration, so ownership transfers and role
// updates survive restarts.
func (a *Authority) Restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	saved, found, err := a.store.Load(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load role assignments")
	}
	if !found {
		return a.persistLocked(ctx)
	}
	if saved.Owner.IsZero() {
		return dErrors.New(dErrors.CodeInternal, "persisted role assignments have no owner")
	}
	a.owner = saved.Owner
	a.strategy = saved.Strategy
	a.relayer = saved.Relayer
	return nil
}

// persistLocked writes the current roles. Callers hold a.mu.
func (a *Authority) persistLocked(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	err := a.store.Save(ctx, rolestore.Roles{
		Owner:    a.owner,
		Strategy: a.strategy,
		Relayer:  a.relayer,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist role assignments")
	}
	return nil
}

// Resolve returns the effective caller for a call made directly by `direct`.
// When the direct caller is the registered relayer, the relayer is asked for
// the original initiator; otherwise the direct caller passes through
// unchanged. This is the single indirection seam consumed by every
// state-changing entry point.
func (a *Authority) Resolve(ctx context.Context, direct domain.Identity) (domain.Identity, error) {
	a.mu.RLock()
	relayerAddr := a.relayer
	client := a.relayerClient
	a.mu.RUnlock()
	return resolve(ctx, direct, relayerAddr, client)
}

// resolve is the pure indirection rule, kept free of Authority state so tests
// can exercise it with a fake relayer.
func resolve(ctx context.Context, direct, relayerAddr domain.Identity, client relayer.Client) (domain.Identity, error) {
	if relayerAddr.IsZero() || direct != relayerAddr {
		return direct, nil
	}
	if client == nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "relayer is registered but unreachable")
	}
	initiator, err := client.Initiator(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "relayer failed to report initiator")
	}
	if initiator.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "relayer reported no initiator")
	}
	return initiator, nil
}

// RequireOwner resolves the effective caller and verifies it is the owning
// authority.
func (a *Authority) RequireOwner(ctx context.Context, direct domain.Identity) (domain.Identity, error) {
	effective, err := a.Resolve(ctx, direct)
	if err != nil {
		return "", err
	}
	a.mu.RLock()
	owner := a.owner
	a.mu.RUnlock()
	if effective != owner {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller is not the owning authority")
	}
	return effective, nil
}

// RequireStrategy resolves the effective caller and verifies it is the
// strategy authority.
func (a *Authority) RequireStrategy(ctx context.Context, direct domain.Identity) (domain.Identity, error) {
	effective, err := a.Resolve(ctx, direct)
	if err != nil {
		return "", err
	}
	a.mu.RLock()
	strategy := a.strategy
	a.mu.RUnlock()
	if strategy.IsZero() || effective != strategy {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller is not the strategy authority")
	}
	return effective, nil
}

// TransferOwnership moves the owning authority to a new identity.
func (a *Authority) TransferOwnership(ctx context.Context, caller, newOwner domain.Identity) error {
	effective, err := a.RequireOwner(ctx, caller)
	if err != nil {
		return err
	}
	if newOwner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "new owner is required")
	}
	a.mu.Lock()
	previous := a.owner
	a.owner = newOwner
	if err := a.persistLocked(ctx); err != nil {
		a.owner = previous
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()
	a.logRoleUpdate(ctx, effective, "owner", newOwner)
	return nil
}

// SetStrategyAuthority updates the identity allowed to move allocations.
func (a *Authority) SetStrategyAuthority(ctx context.Context, caller, strategy domain.Identity) error {
	effective, err := a.RequireOwner(ctx, caller)
	if err != nil {
		return err
	}
	a.mu.Lock()
	previous := a.strategy
	a.strategy = strategy
	if err := a.persistLocked(ctx); err != nil {
		a.strategy = previous
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()
	a.logRoleUpdate(ctx, effective, "strategy_authority", strategy)
	return nil
}

// SetRelayer updates the registered relayer. The empty identity is always
// valid and disables indirection; any other candidate must answer the
// initiator probe or the update is rejected.
func (a *Authority) SetRelayer(ctx context.Context, caller, candidate domain.Identity) error {
	effective, err := a.RequireOwner(ctx, caller)
	if err != nil {
		return err
	}
	if !candidate.IsZero() {
		if a.relayerClient == nil {
			return dErrors.New(dErrors.CodeValidation, "invalid relayer: no relayer endpoint configured")
		}
		if _, err := a.relayerClient.Initiator(ctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid relayer: initiator probe failed")
		}
	}
	a.mu.Lock()
	previous := a.relayer
	a.relayer = candidate
	if err := a.persistLocked(ctx); err != nil {
		a.relayer = previous
		a.mu.Unlock()
		return err
	}
	a.mu.Unlock()
	a.logRoleUpdate(ctx, effective, "relayer", candidate)
	return nil
}

// Roles returns a snapshot of the current role assignments.
func (a *Authority) Roles() Roles {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Roles{Owner: a.owner, StrategyAuthority: a.strategy, Relayer: a.relayer}
}

func (a *Authority) logRoleUpdate(ctx context.Context, actor domain.Identity, role string, value domain.Identity) {
	a.logger.InfoContext(ctx, "role updated",
		"role", role,
		"value", value,
		"actor", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	if a.events == nil {
		return
	}
	_ = a.events.Emit(ctx, audit.Event{
		Action: audit.ActionRoleUpdated,
		Actor:  actor,
		Detail: role + "=" + value.String(),
	})
}
