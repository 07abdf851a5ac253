package store

import (
	"context"

	"vaultd/internal/domain"
)

// Roles is the persisted singleton role assignment: one row created at first
// boot and mutated in place forever after.
type Roles struct {
	Owner    domain.Identity
	Strategy domain.Identity
	Relayer  domain.Identity
}

// Store persists the role assignment.
type Store interface {
	// Load returns the saved roles and whether a row exists yet.
	Load(ctx context.Context) (Roles, bool, error)
	Save(ctx context.Context, roles Roles) error
}
