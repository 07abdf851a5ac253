package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the allocations table. Amounts are stored as decimal text
// to keep full 256-bit precision.
const Schema = `
CREATE TABLE IF NOT EXISTS allocations (
    asset_id  BIGINT PRIMARY KEY,
    amount    TEXT NOT NULL DEFAULT '0',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres is a pgx-backed Store. It performs read-modify-write without row
// locks; callers serialize mutations through the call boundary.
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

func (s *Postgres) Allocated(ctx context.Context, assetID uint64) (*big.Int, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT amount FROM allocations WHERE asset_id = $1`, int64(assetID),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query allocation: %w", err)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt allocation amount %q for asset %d", raw, assetID)
	}
	return amount, nil
}

func (s *Postgres) Add(ctx context.Context, assetID uint64, amount *big.Int) error {
	current, err := s.Allocated(ctx, assetID)
	if err != nil {
		return err
	}
	return s.write(ctx, assetID, new(big.Int).Add(current, amount))
}

func (s *Postgres) Reduce(ctx context.Context, assetID uint64, amount *big.Int) (bool, error) {
	current, err := s.Allocated(ctx, assetID)
	if err != nil {
		return false, err
	}
	next := new(big.Int).Sub(current, amount)
	clamped := next.Sign() < 0
	if clamped {
		next = new(big.Int)
	}
	if err := s.write(ctx, assetID, next); err != nil {
		return false, err
	}
	return clamped, nil
}

func (s *Postgres) write(ctx context.Context, assetID uint64, amount *big.Int) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO allocations (asset_id, amount, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (asset_id) DO UPDATE SET amount = $2, updated_at = now()`,
		int64(assetID), amount.String())
	if err != nil {
		return fmt.Errorf("write allocation: %w", err)
	}
	return nil
}
