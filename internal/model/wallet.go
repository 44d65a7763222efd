package model

import (
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type WalletBalance struct {
	UserID string          `json:"user_id"`
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

type Leverage struct {
	UserID   string             `json:"user_id"`
	Symbol   string             `json:"symbol"`
	Exchange types.Exchange     `json:"exchange"`
	Side     types.PositionSide `json:"side"`
	Leverage int                `json:"leverage"`
	Locked   bool               `json:"locked"`
}

type HedgeMode struct {
	UserID string `json:"user_id"`
	Hedge  bool   `json:"hedge"`
}

type User struct {
	ID         string `json:"id"`
	APIKey     string `json:"api_key"`
	SecretHash string `json:"-"`
}
