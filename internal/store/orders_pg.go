package store

import (
	"context"
	"errors"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgOrders struct {
	pool *pgxpool.Pool
}

func NewPgOrders(pool *pgxpool.Pool) *PgOrders {
	return &PgOrders{pool: pool}
}

const orderColumns = "id, external_id, user_id, symbol, exchange, side, type, price, amount, quote_amount, filled_amount, filled_quote_amount, avg_filled_price, fee, fee_perc, status, reduce_only, position_side, created_at, updated_at"

func (s *PgOrders) Insert(ctx context.Context, o model.Order) (model.Order, error) {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	err := s.pool.QueryRow(ctx,
		"insert into orders (external_id, user_id, symbol, exchange, side, type, price, amount, quote_amount, filled_amount, filled_quote_amount, avg_filled_price, fee, fee_perc, status, reduce_only, position_side, created_at, updated_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19) returning id",
		o.ExternalID, o.UserID, o.Symbol, string(o.Exchange), string(o.Side), string(o.Type), o.Price, o.Amount, o.QuoteAmount, o.FilledAmount, o.FilledQuoteAmount, o.AvgFilledPrice, o.Fee, o.FeePerc, string(o.Status), o.ReduceOnly, string(o.PositionSide), o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return o, ErrDuplicate
		}
		return o, err
	}
	return o, nil
}

func (s *PgOrders) Update(ctx context.Context, o model.Order) error {
	o.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		"update orders set price=$1, amount=$2, quote_amount=$3, filled_amount=$4, filled_quote_amount=$5, avg_filled_price=$6, fee=$7, status=$8, updated_at=$9 where id=$10",
		o.Price, o.Amount, o.QuoteAmount, o.FilledAmount, o.FilledQuoteAmount, o.AvgFilledPrice, o.Fee, string(o.Status), o.UpdatedAt, o.ID,
	)
	return err
}

func (s *PgOrders) GetByExternalID(ctx context.Context, externalID, symbol string) (model.Order, error) {
	row := s.pool.QueryRow(ctx, "select "+orderColumns+" from orders where external_id=$1 and symbol=$2", externalID, symbol)
	return scanOrder(row)
}

func (s *PgOrders) GetByID(ctx context.Context, id string) (model.Order, error) {
	row := s.pool.QueryRow(ctx, "select "+orderColumns+" from orders where id=$1", id)
	return scanOrder(row)
}

func (s *PgOrders) ListOpenLimit(ctx context.Context) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx, "select "+orderColumns+" from orders where type='LIMIT' and status in ('NEW','PARTIALLY_FILLED')")
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *PgOrders) ListOpenByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx, "select "+orderColumns+" from orders where user_id=$1 and status in ('NEW','PARTIALLY_FILLED') order by created_at desc", userID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var exchange, side, typ, status, positionSide string
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.Symbol, &exchange, &side, &typ, &o.Price, &o.Amount, &o.QuoteAmount, &o.FilledAmount, &o.FilledQuoteAmount, &o.AvgFilledPrice, &o.Fee, &o.FeePerc, &status, &o.ReduceOnly, &positionSide, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, ErrNotFound
		}
		return o, err
	}
	o.Exchange = types.Exchange(exchange)
	o.Side = types.OrderSide(side)
	o.Type = types.OrderType(typ)
	o.Status = types.OrderStatus(status)
	o.PositionSide = types.PositionSide(positionSide)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
