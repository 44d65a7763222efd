package model

import (
	"time"

	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string             `json:"id"`
	ExternalID        string             `json:"external_id"`
	UserID            string             `json:"user_id"`
	Symbol            string             `json:"symbol"`
	Exchange          types.Exchange     `json:"exchange"`
	Side              types.OrderSide    `json:"side"`
	Type              types.OrderType    `json:"type"`
	Price             decimal.Decimal    `json:"price"`
	Amount            decimal.Decimal    `json:"amount"`
	QuoteAmount       decimal.Decimal    `json:"quote_amount"`
	FilledAmount      decimal.Decimal    `json:"filled_amount"`
	FilledQuoteAmount decimal.Decimal    `json:"filled_quote_amount"`
	AvgFilledPrice    decimal.Decimal    `json:"avg_filled_price"`
	Fee               decimal.Decimal    `json:"fee"`
	FeePerc           decimal.Decimal    `json:"fee_perc"`
	Status            types.OrderStatus  `json:"status"`
	ReduceOnly        bool               `json:"reduce_only"`
	PositionSide      types.PositionSide `json:"position_side,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func (o Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

func (o Order) Live() bool {
	return o.Status == types.OrderStatusNew || o.Status == types.OrderStatusPartiallyFilled
}
