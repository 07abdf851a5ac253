package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

// Schema for the ledger tables. Amounts are stored as decimal text so no
// precision is lost; all mutation happens under the process-wide call
// boundary, so reads-then-writes here need no row locking of their own.
const Schema = `
CREATE TABLE IF NOT EXISTS share_supplies (
    asset_id BIGINT PRIMARY KEY,
    shares   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS share_balances (
    asset_id BIGINT NOT NULL,
    holder   TEXT NOT NULL,
    shares   TEXT NOT NULL,
    PRIMARY KEY (asset_id, holder)
);

CREATE TABLE IF NOT EXISTS share_allowances (
    asset_id BIGINT NOT NULL,
    owner    TEXT NOT NULL,
    spender  TEXT NOT NULL,
    amount   TEXT NOT NULL,
    PRIMARY KEY (asset_id, owner, spender)
);

CREATE TABLE IF NOT EXISTS operator_approvals (
    owner    TEXT NOT NULL,
    operator TEXT NOT NULL,
    approved BOOLEAN NOT NULL,
    PRIMARY KEY (owner, operator)
);
`

// Postgres persists the share ledger in PostgreSQL via pgx.
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

func (s *Postgres) TotalSupply(ctx context.Context, assetID uint64) (*big.Int, error) {
	return s.readAmount(ctx, `SELECT shares FROM share_supplies WHERE asset_id = $1`, assetID)
}

func (s *Postgres) BalanceOf(ctx context.Context, assetID uint64, holder domain.Identity) (*big.Int, error) {
	return s.readAmount(ctx, `SELECT shares FROM share_balances WHERE asset_id = $1 AND holder = $2`, assetID, holder.String())
}

func (s *Postgres) Mint(ctx context.Context, assetID uint64, receiver domain.Identity, shares *big.Int) error {
	balance, err := s.BalanceOf(ctx, assetID, receiver)
	if err != nil {
		return err
	}
	supply, err := s.TotalSupply(ctx, assetID)
	if err != nil {
		return err
	}
	if err := s.writeBalance(ctx, assetID, receiver, balance.Add(balance, shares)); err != nil {
		return err
	}
	return s.writeSupply(ctx, assetID, supply.Add(supply, shares))
}

func (s *Postgres) Burn(ctx context.Context, assetID uint64, owner domain.Identity, shares *big.Int) error {
	balance, err := s.BalanceOf(ctx, assetID, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	supply, err := s.TotalSupply(ctx, assetID)
	if err != nil {
		return err
	}
	if err := s.writeBalance(ctx, assetID, owner, balance.Sub(balance, shares)); err != nil {
		return err
	}
	return s.writeSupply(ctx, assetID, supply.Sub(supply, shares))
}

func (s *Postgres) Move(ctx context.Context, assetID uint64, from, to domain.Identity, shares *big.Int) error {
	fromBalance, err := s.BalanceOf(ctx, assetID, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	toBalance, err := s.BalanceOf(ctx, assetID, to)
	if err != nil {
		return err
	}
	if err := s.writeBalance(ctx, assetID, from, fromBalance.Sub(fromBalance, shares)); err != nil {
		return err
	}
	return s.writeBalance(ctx, assetID, to, toBalance.Add(toBalance, shares))
}

func (s *Postgres) Allowance(ctx context.Context, assetID uint64, owner, spender domain.Identity) (*big.Int, error) {
	return s.readAmount(ctx, `SELECT amount FROM share_allowances WHERE asset_id = $1 AND owner = $2 AND spender = $3`,
		assetID, owner.String(), spender.String())
}

func (s *Postgres) SetAllowance(ctx context.Context, assetID uint64, owner, spender domain.Identity, amount *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO share_allowances (asset_id, owner, spender, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id, owner, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		assetID, owner.String(), spender.String(), amount.String())
	if err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

func (s *Postgres) SpendAllowance(ctx context.Context, assetID uint64, owner, spender domain.Identity, shares *big.Int) error {
	allowance, err := s.Allowance(ctx, assetID, owner, spender)
	if err != nil {
		return err
	}
	if domain.IsUnlimited(allowance) {
		return nil
	}
	if allowance.Cmp(shares) < 0 {
		return sentinel.ErrInsufficientFunds
	}
	return s.SetAllowance(ctx, assetID, owner, spender, allowance.Sub(allowance, shares))
}

func (s *Postgres) IsOperator(ctx context.Context, owner, operator domain.Identity) (bool, error) {
	var approved bool
	err := s.pool.QueryRow(ctx, `SELECT approved FROM operator_approvals WHERE owner = $1 AND operator = $2`,
		owner.String(), operator.String()).Scan(&approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read operator approval: %w", err)
	}
	return approved, nil
}

func (s *Postgres) SetOperator(ctx context.Context, owner, operator domain.Identity, approved bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO operator_approvals (owner, operator, approved)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, operator) DO UPDATE SET approved = EXCLUDED.approved`,
		owner.String(), operator.String(), approved)
	if err != nil {
		return fmt.Errorf("set operator approval: %w", err)
	}
	return nil
}

func (s *Postgres) readAmount(ctx context.Context, query string, args ...any) (*big.Int, error) {
	var raw string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("read amount: %w", err)
	}
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt stored amount: %w", err)
	}
	return amount, nil
}

func (s *Postgres) writeBalance(ctx context.Context, assetID uint64, holder domain.Identity, shares *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO share_balances (asset_id, holder, shares)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id, holder) DO UPDATE SET shares = EXCLUDED.shares`,
		assetID, holder.String(), shares.String())
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func (s *Postgres) writeSupply(ctx context.Context, assetID uint64, shares *big.Int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO share_supplies (asset_id, shares)
		VALUES ($1, $2)
		ON CONFLICT (asset_id) DO UPDATE SET shares = EXCLUDED.shares`,
		assetID, shares.String())
	if err != nil {
		return fmt.Errorf("write supply: %w", err)
	}
	return nil
}
