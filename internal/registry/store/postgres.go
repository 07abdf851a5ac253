package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultd/internal/domain"
	"vaultd/pkg/platform/sentinel"
)

// Schema for the assets table. Ids are assigned by the store, not a sequence,
// so a rejected duplicate never consumes an id.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
    id         BIGINT PRIMARY KEY,
    underlying TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    symbol     TEXT NOT NULL,
    decimals   SMALLINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// Postgres persists assets in PostgreSQL via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the assets table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Postgres) Create(ctx context.Context, asset *domain.Asset) (uint64, error) {
	var id uint64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assets (id, underlying, name, symbol, decimals, created_at)
		SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5 FROM assets
		RETURNING id`,
		asset.Underlying.String(), asset.Name, asset.Symbol, int16(asset.Decimals), asset.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("insert asset: %w", err)
	}
	return id, nil
}

func (s *Postgres) FindByID(ctx context.Context, assetID uint64) (domain.Asset, error) {
	return s.scanOne(ctx, `SELECT id, underlying, name, symbol, decimals, created_at FROM assets WHERE id = $1`, assetID)
}

func (s *Postgres) FindByUnderlying(ctx context.Context, underlying domain.Identity) (domain.Asset, error) {
	return s.scanOne(ctx, `SELECT id, underlying, name, symbol, decimals, created_at FROM assets WHERE underlying = $1`, underlying.String())
}

func (s *Postgres) List(ctx context.Context) ([]domain.Asset, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, underlying, name, symbol, decimals, created_at FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (s *Postgres) scanOne(ctx context.Context, query string, arg any) (domain.Asset, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, sentinel.ErrNotFound
		}
		return domain.Asset{}, err
	}
	return asset, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (domain.Asset, error) {
	var (
		asset      domain.Asset
		underlying string
		decimals   int16
	)
	if err := row.Scan(&asset.ID, &underlying, &asset.Name, &asset.Symbol, &decimals, &asset.CreatedAt); err != nil {
		return domain.Asset{}, err
	}
	asset.Underlying = domain.Identity(underlying)
	asset.Decimals = uint8(decimals)
	asset.Registered = true
	return asset, nil
}
