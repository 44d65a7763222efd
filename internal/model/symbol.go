package model

import (
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type SymbolAsset struct {
	Name      string          `json:"name"`
	MinAmount decimal.Decimal `json:"min_amount"`
	Step      decimal.Decimal `json:"step,omitempty"`
}

// Symbol carries the immutable per-symbol parameters. For inverse
// contracts QuoteAsset.MinAmount doubles as the contract size in quote
// units.
type Symbol struct {
	Pair                string         `json:"pair"`
	Exchange            types.Exchange `json:"exchange"`
	BaseAsset           SymbolAsset    `json:"base_asset"`
	QuoteAsset          SymbolAsset    `json:"quote_asset"`
	PriceAssetPrecision int32          `json:"price_asset_precision"`
	MaxOrders           int            `json:"max_orders"`
}

func (s Symbol) ContractSize() decimal.Decimal {
	return s.QuoteAsset.MinAmount
}
