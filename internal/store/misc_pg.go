package store

import (
	"context"
	"errors"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgHedges struct {
	pool *pgxpool.Pool
}

func NewPgHedges(pool *pgxpool.Pool) *PgHedges {
	return &PgHedges{pool: pool}
}

func (s *PgHedges) Get(ctx context.Context, userID string) (bool, error) {
	var hedge bool
	err := s.pool.QueryRow(ctx, "select hedge from hedge_modes where user_id=$1", userID).Scan(&hedge)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return hedge, nil
}

func (s *PgHedges) Set(ctx context.Context, userID string, hedge bool) error {
	_, err := s.pool.Exec(ctx, "insert into hedge_modes (user_id, hedge) values ($1,$2) on conflict (user_id) do update set hedge=$2", userID, hedge)
	return err
}

type PgUsers struct {
	pool *pgxpool.Pool
}

func NewPgUsers(pool *pgxpool.Pool) *PgUsers {
	return &PgUsers{pool: pool}
}

func (s *PgUsers) GetByAPIKey(ctx context.Context, apiKey string) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, "select id, api_key, secret_hash from users where api_key=$1", apiKey).Scan(&u.ID, &u.APIKey, &u.SecretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	return u, nil
}

func (s *PgUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, "select id, api_key, secret_hash from users where id=$1", id).Scan(&u.ID, &u.APIKey, &u.SecretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return u, ErrNotFound
		}
		return u, err
	}
	return u, nil
}

type PgSymbols struct {
	pool *pgxpool.Pool
}

func NewPgSymbols(pool *pgxpool.Pool) *PgSymbols {
	return &PgSymbols{pool: pool}
}

func (s *PgSymbols) Get(ctx context.Context, pair string, exchange types.Exchange) (model.Symbol, error) {
	var sym model.Symbol
	var ex string
	err := s.pool.QueryRow(ctx,
		"select pair, exchange, base_asset, base_min_amount, base_step, quote_asset, quote_min_amount, price_precision, max_orders from symbols where pair=$1 and exchange=$2",
		pair, string(exchange),
	).Scan(&sym.Pair, &ex, &sym.BaseAsset.Name, &sym.BaseAsset.MinAmount, &sym.BaseAsset.Step, &sym.QuoteAsset.Name, &sym.QuoteAsset.MinAmount, &sym.PriceAssetPrecision, &sym.MaxOrders)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sym, ErrNotFound
		}
		return sym, err
	}
	sym.Exchange = types.Exchange(ex)
	return sym, nil
}

func (s *PgSymbols) Upsert(ctx context.Context, sym model.Symbol) error {
	_, err := s.pool.Exec(ctx,
		"insert into symbols (pair, exchange, base_asset, base_min_amount, base_step, quote_asset, quote_min_amount, price_precision, max_orders) values ($1,$2,$3,$4,$5,$6,$7,$8,$9) on conflict (pair, exchange) do update set base_asset=$3, base_min_amount=$4, base_step=$5, quote_asset=$6, quote_min_amount=$7, price_precision=$8, max_orders=$9",
		sym.Pair, string(sym.Exchange), sym.BaseAsset.Name, sym.BaseAsset.MinAmount, sym.BaseAsset.Step, sym.QuoteAsset.Name, sym.QuoteAsset.MinAmount, sym.PriceAssetPrecision, sym.MaxOrders,
	)
	return err
}
