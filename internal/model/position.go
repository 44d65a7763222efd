package model

import (
	"time"

	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type Position struct {
	UUID             string               `json:"uuid"`
	UserID           string               `json:"user_id"`
	Symbol           string               `json:"symbol"`
	Exchange         types.Exchange       `json:"exchange"`
	PositionSide     types.PositionSide   `json:"position_side"`
	PositionAmt      decimal.Decimal      `json:"position_amt"`
	EntryPrice       decimal.Decimal      `json:"entry_price"`
	Margin           decimal.Decimal      `json:"margin"`
	LiquidationPrice decimal.Decimal      `json:"liquidation_price"`
	Leverage         int                  `json:"leverage"`
	Profit           decimal.Decimal      `json:"profit"`
	Fee              decimal.Decimal      `json:"fee"`
	Status           types.PositionStatus `json:"status"`
	ClosePrice       decimal.Decimal      `json:"close_price"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func (p Position) Open() bool {
	return p.Status == types.PositionStatusNew
}
