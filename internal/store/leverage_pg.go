package store

import (
	"context"
	"errors"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgLeverages struct {
	pool *pgxpool.Pool
}

func NewPgLeverages(pool *pgxpool.Pool) *PgLeverages {
	return &PgLeverages{pool: pool}
}

func (s *PgLeverages) Get(ctx context.Context, userID, symbol string, side types.PositionSide) (model.Leverage, error) {
	l := model.Leverage{UserID: userID, Symbol: symbol, Side: side}
	var exchange, sideStr string
	err := s.pool.QueryRow(ctx, "select exchange, side, leverage, locked from leverages where user_id=$1 and symbol=$2 and side=$3", userID, symbol, string(side)).Scan(&exchange, &sideStr, &l.Leverage, &l.Locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return l, ErrNotFound
		}
		return l, err
	}
	l.Exchange = types.Exchange(exchange)
	l.Side = types.PositionSide(sideStr)
	return l, nil
}

func (s *PgLeverages) Ensure(ctx context.Context, userID, symbol string, exchange types.Exchange, side types.PositionSide) (model.Leverage, error) {
	l, err := s.Get(ctx, userID, symbol, side)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return l, err
	}
	l = model.Leverage{UserID: userID, Symbol: symbol, Exchange: exchange, Side: side, Leverage: 1, Locked: false}
	_, err = s.pool.Exec(ctx, "insert into leverages (user_id, symbol, exchange, side, leverage, locked) values ($1,$2,$3,$4,$5,$6) on conflict (user_id, symbol, side) do nothing", userID, symbol, string(exchange), string(side), l.Leverage, l.Locked)
	if err != nil {
		return l, err
	}
	return s.Get(ctx, userID, symbol, side)
}

func (s *PgLeverages) Update(ctx context.Context, l model.Leverage) error {
	_, err := s.pool.Exec(ctx, "insert into leverages (user_id, symbol, exchange, side, leverage, locked) values ($1,$2,$3,$4,$5,$6) on conflict (user_id, symbol, side) do update set exchange=$3, leverage=$5, locked=$6", l.UserID, l.Symbol, string(l.Exchange), string(l.Side), l.Leverage, l.Locked)
	return err
}

func (s *PgLeverages) ListLocked(ctx context.Context) ([]model.Leverage, error) {
	rows, err := s.pool.Query(ctx, "select user_id, symbol, exchange, side, leverage, locked from leverages where locked")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Leverage
	for rows.Next() {
		var l model.Leverage
		var exchange, side string
		if err := rows.Scan(&l.UserID, &l.Symbol, &exchange, &side, &l.Leverage, &l.Locked); err != nil {
			return nil, err
		}
		l.Exchange = types.Exchange(exchange)
		l.Side = types.PositionSide(side)
		out = append(out, l)
	}
	return out, rows.Err()
}
