package store

import (
	"context"
	"errors"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgPositions struct {
	pool *pgxpool.Pool
}

func NewPgPositions(pool *pgxpool.Pool) *PgPositions {
	return &PgPositions{pool: pool}
}

const positionColumns = "uuid, user_id, symbol, exchange, position_side, position_amt, entry_price, margin, liquidation_price, leverage, profit, fee, status, close_price, created_at, updated_at"

func (s *PgPositions) Insert(ctx context.Context, p model.Position) error {
	_, err := s.pool.Exec(ctx,
		"insert into positions (uuid, user_id, symbol, exchange, position_side, position_amt, entry_price, margin, liquidation_price, leverage, profit, fee, status, close_price, created_at, updated_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)",
		p.UUID, p.UserID, p.Symbol, string(p.Exchange), string(p.PositionSide), p.PositionAmt, p.EntryPrice, p.Margin, p.LiquidationPrice, p.Leverage, p.Profit, p.Fee, string(p.Status), p.ClosePrice, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PgPositions) Update(ctx context.Context, p model.Position) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		"update positions set position_amt=$1, entry_price=$2, margin=$3, liquidation_price=$4, leverage=$5, profit=$6, fee=$7, status=$8, close_price=$9, updated_at=$10 where uuid=$11",
		p.PositionAmt, p.EntryPrice, p.Margin, p.LiquidationPrice, p.Leverage, p.Profit, p.Fee, string(p.Status), p.ClosePrice, p.UpdatedAt, p.UUID,
	)
	return err
}

func (s *PgPositions) Get(ctx context.Context, uuid string) (model.Position, error) {
	row := s.pool.QueryRow(ctx, "select "+positionColumns+" from positions where uuid=$1", uuid)
	return scanPosition(row)
}

func (s *PgPositions) ListOpen(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, "select "+positionColumns+" from positions where status='NEW'")
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

func (s *PgPositions) ListOpenByUser(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, "select "+positionColumns+" from positions where user_id=$1 and status='NEW' order by created_at desc", userID)
	if err != nil {
		return nil, err
	}
	return collectPositions(rows)
}

func scanPosition(row pgx.Row) (model.Position, error) {
	var p model.Position
	var exchange, side, status string
	err := row.Scan(&p.UUID, &p.UserID, &p.Symbol, &exchange, &side, &p.PositionAmt, &p.EntryPrice, &p.Margin, &p.LiquidationPrice, &p.Leverage, &p.Profit, &p.Fee, &status, &p.ClosePrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, ErrNotFound
		}
		return p, err
	}
	p.Exchange = types.Exchange(exchange)
	p.PositionSide = types.PositionSide(side)
	p.Status = types.PositionStatus(status)
	return p, nil
}

func collectPositions(rows pgx.Rows) ([]model.Position, error) {
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
