package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schema = []string{
	`create table if not exists users (
		id uuid primary key default gen_random_uuid(),
		api_key text not null unique,
		secret_hash text not null
	)`,
	`create table if not exists orders (
		id uuid primary key default gen_random_uuid(),
		external_id text not null,
		user_id text not null,
		symbol text not null,
		exchange text not null,
		side text not null,
		type text not null,
		price numeric not null default 0,
		amount numeric not null default 0,
		quote_amount numeric not null default 0,
		filled_amount numeric not null default 0,
		filled_quote_amount numeric not null default 0,
		avg_filled_price numeric not null default 0,
		fee numeric not null default 0,
		fee_perc numeric not null default 0,
		status text not null,
		reduce_only boolean not null default false,
		position_side text not null default '',
		created_at timestamptz not null,
		updated_at timestamptz not null,
		unique (external_id, symbol)
	)`,
	`create table if not exists positions (
		uuid uuid primary key,
		user_id text not null,
		symbol text not null,
		exchange text not null,
		position_side text not null,
		position_amt numeric not null default 0,
		entry_price numeric not null default 0,
		margin numeric not null default 0,
		liquidation_price numeric not null default 0,
		leverage int not null default 1,
		profit numeric not null default 0,
		fee numeric not null default 0,
		status text not null,
		close_price numeric not null default 0,
		created_at timestamptz not null,
		updated_at timestamptz not null
	)`,
	`create table if not exists wallets (
		user_id text not null,
		asset text not null,
		free numeric not null default 0,
		locked numeric not null default 0,
		primary key (user_id, asset)
	)`,
	`create table if not exists leverages (
		user_id text not null,
		symbol text not null,
		exchange text not null default '',
		side text not null default 'BOTH',
		leverage int not null default 1,
		locked boolean not null default false,
		primary key (user_id, symbol, side)
	)`,
	`create table if not exists hedge_modes (
		user_id text primary key,
		hedge boolean not null default false
	)`,
	`create table if not exists symbols (
		pair text not null,
		exchange text not null,
		base_asset text not null,
		base_min_amount numeric not null default 0,
		base_step numeric not null default 0,
		quote_asset text not null,
		quote_min_amount numeric not null default 0,
		price_precision int not null default 8,
		max_orders int not null default 0,
		primary key (pair, exchange)
	)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
