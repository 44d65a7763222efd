package store

import (
	"context"
	"errors"

	"papertrade/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgWallets struct {
	pool *pgxpool.Pool
}

func NewPgWallets(pool *pgxpool.Pool) *PgWallets {
	return &PgWallets{pool: pool}
}

func (s *PgWallets) Get(ctx context.Context, userID, asset string) (model.WalletBalance, error) {
	b := model.WalletBalance{UserID: userID, Asset: asset}
	err := s.pool.QueryRow(ctx, "select free, locked from wallets where user_id=$1 and asset=$2", userID, asset).Scan(&b.Free, &b.Locked)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return b, err
	}
	_, err = s.pool.Exec(ctx, "insert into wallets (user_id, asset, free, locked) values ($1,$2,0,0) on conflict (user_id, asset) do nothing", userID, asset)
	if err != nil {
		return b, err
	}
	b.Free = decimal.Zero
	b.Locked = decimal.Zero
	return b, nil
}

func (s *PgWallets) Apply(ctx context.Context, userID, asset string, freeDelta, lockedDelta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, "update wallets set free = free + $1, locked = locked + $2 where user_id=$3 and asset=$4", freeDelta, lockedDelta, userID, asset)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		_, err = s.pool.Exec(ctx, "insert into wallets (user_id, asset, free, locked) values ($1,$2,$3,$4) on conflict (user_id, asset) do update set free = wallets.free + $3, locked = wallets.locked + $4", userID, asset, freeDelta, lockedDelta)
	}
	return err
}

func (s *PgWallets) Set(ctx context.Context, b model.WalletBalance) error {
	_, err := s.pool.Exec(ctx, "insert into wallets (user_id, asset, free, locked) values ($1,$2,$3,$4) on conflict (user_id, asset) do update set free = $3, locked = $4", b.UserID, b.Asset, b.Free, b.Locked)
	return err
}

func (s *PgWallets) ListByUser(ctx context.Context, userID string) ([]model.WalletBalance, error) {
	rows, err := s.pool.Query(ctx, "select user_id, asset, free, locked from wallets where user_id=$1 order by asset", userID)
	if err != nil {
		return nil, err
	}
	return collectWallets(rows)
}

func (s *PgWallets) ListLocked(ctx context.Context) ([]model.WalletBalance, error) {
	rows, err := s.pool.Query(ctx, "select user_id, asset, free, locked from wallets where locked <> 0")
	if err != nil {
		return nil, err
	}
	return collectWallets(rows)
}

func collectWallets(rows pgx.Rows) ([]model.WalletBalance, error) {
	defer rows.Close()
	var out []model.WalletBalance
	for rows.Next() {
		var b model.WalletBalance
		if err := rows.Scan(&b.UserID, &b.Asset, &b.Free, &b.Locked); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
