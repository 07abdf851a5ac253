package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultd/internal/domain"
)

// Schema creates the single-row roles table. The boolean primary key with a
// CHECK constraint admits exactly one row.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_roles (
    singleton  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
    owner      TEXT NOT NULL,
    strategy   TEXT NOT NULL DEFAULT '',
    relayer    TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres is a pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Postgres) Load(ctx context.Context) (Roles, bool, error) {
	var owner, strategy, relayer string
	err := s.pool.QueryRow(ctx,
		`SELECT owner, strategy, relayer FROM vault_roles WHERE singleton`,
	).Scan(&owner, &strategy, &relayer)
	if errors.Is(err, pgx.ErrNoRows) {
		return Roles{}, false, nil
	}
	if err != nil {
		return Roles{}, false, fmt.Errorf("query roles: %w", err)
	}
	return Roles{
		Owner:    domain.Identity(owner),
		Strategy: domain.Identity(strategy),
		Relayer:  domain.Identity(relayer),
	}, true, nil
}

func (s *Postgres) Save(ctx context.Context, roles Roles) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO vault_roles (singleton, owner, strategy, relayer, updated_at)
        VALUES (TRUE, $1, $2, $3, now())
        ON CONFLICT (singleton) DO UPDATE
            SET owner = $1, strategy = $2, relayer = $3, updated_at = now()`,
		roles.Owner.String(), roles.Strategy.String(), roles.Relayer.String())
	if err != nil {
		return fmt.Errorf("write roles: %w", err)
	}
	return nil
}
