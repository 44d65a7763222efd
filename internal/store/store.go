package store

import (
	"context"
	"errors"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicated externalId + symbol")
)

// Consumer-facing contracts for durable state. The pgx implementations
// below are the production backing; storetest carries in-memory ones.

type Orders interface {
	Insert(ctx context.Context, o model.Order) (model.Order, error)
	Update(ctx context.Context, o model.Order) error
	GetByExternalID(ctx context.Context, externalID, symbol string) (model.Order, error)
	GetByID(ctx context.Context, id string) (model.Order, error)
	ListOpenLimit(ctx context.Context) ([]model.Order, error)
	ListOpenByUser(ctx context.Context, userID string) ([]model.Order, error)
}

type Positions interface {
	Insert(ctx context.Context, p model.Position) error
	Update(ctx context.Context, p model.Position) error
	Get(ctx context.Context, uuid string) (model.Position, error)
	ListOpen(ctx context.Context) ([]model.Position, error)
	ListOpenByUser(ctx context.Context, userID string) ([]model.Position, error)
}

type Wallets interface {
	// Get returns the balance row, creating a zero row on first touch.
	Get(ctx context.Context, userID, asset string) (model.WalletBalance, error)
	// Apply atomically adds the deltas to a single wallet row.
	Apply(ctx context.Context, userID, asset string, freeDelta, lockedDelta decimal.Decimal) error
	// Set overwrites a row outright; reconciliation only.
	Set(ctx context.Context, b model.WalletBalance) error
	ListByUser(ctx context.Context, userID string) ([]model.WalletBalance, error)
	ListLocked(ctx context.Context) ([]model.WalletBalance, error)
}

type Leverages interface {
	Get(ctx context.Context, userID, symbol string, side types.PositionSide) (model.Leverage, error)
	// Ensure inserts a default row (leverage=1, unlocked) when missing
	// and returns the current row either way.
	Ensure(ctx context.Context, userID, symbol string, exchange types.Exchange, side types.PositionSide) (model.Leverage, error)
	Update(ctx context.Context, l model.Leverage) error
	ListLocked(ctx context.Context) ([]model.Leverage, error)
}

type Hedges interface {
	Get(ctx context.Context, userID string) (bool, error)
	Set(ctx context.Context, userID string, hedge bool) error
}

type Users interface {
	GetByAPIKey(ctx context.Context, apiKey string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

type Symbols interface {
	Get(ctx context.Context, pair string, exchange types.Exchange) (model.Symbol, error)
	Upsert(ctx context.Context, s model.Symbol) error
}
