package settlement

import (
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Margin is the initial margin for a fill of amount at price. Inverse
// contracts are base-margined: notional = amount·contractSize/price.
func Margin(amount, price decimal.Decimal, leverage int, inverse bool, contractSize decimal.Decimal) decimal.Decimal {
	lev := decimal.NewFromInt(int64(leverage))
	if inverse {
		return amount.Mul(contractSize).Div(price).Div(lev)
	}
	return amount.Mul(price).Div(lev)
}

// FuturesFee is charged in the margin asset: quote for linear, base for
// inverse.
func FuturesFee(amount, price, feePerc decimal.Decimal, inverse bool, contractSize decimal.Decimal) decimal.Decimal {
	if inverse {
		return amount.Mul(contractSize).Div(price).Mul(feePerc)
	}
	return amount.Mul(price).Mul(feePerc)
}

// LiquidationPrice derives the single-trigger liquidation price from the
// entry. It is computed once at open and recomputed only when the
// position grows.
func LiquidationPrice(entry decimal.Decimal, side types.PositionSide, feePerc decimal.Decimal, leverage int) decimal.Decimal {
	s := decimal.NewFromInt(1)
	if side == types.PositionSideLong {
		s = decimal.NewFromInt(-1)
	}
	if leverage > 1 {
		lev := decimal.NewFromInt(int64(leverage))
		return entry.Mul(one.Add(s.Div(lev))).Mul(one.Add(feePerc.Mul(s)))
	}
	if side == types.PositionSideLong {
		return entry.Mul(feePerc)
	}
	return entry.Div(feePerc)
}

// RealizedPnL for closing amount of a position at price, fee already in
// margin-asset units.
func RealizedPnL(amount, entry, price decimal.Decimal, side types.PositionSide, inverse bool, contractSize, fee decimal.Decimal) decimal.Decimal {
	dir := decimal.NewFromInt(1)
	if side == types.PositionSideShort {
		dir = decimal.NewFromInt(-1)
	}
	if inverse {
		notionalEntry := amount.Mul(contractSize).Div(entry)
		notionalClose := amount.Mul(contractSize).Div(price)
		return notionalEntry.Sub(notionalClose).Mul(dir).Sub(fee)
	}
	return amount.Mul(price).Sub(amount.Mul(entry)).Mul(dir).Sub(fee)
}

// positionSideFor maps an opening order side to the position it creates.
func positionSideFor(side types.OrderSide) types.PositionSide {
	if side == types.OrderSideBuy {
		return types.PositionSideLong
	}
	return types.PositionSideShort
}

// sameDirection reports whether an order adds to the position instead of
// reducing it.
func sameDirection(orderSide types.OrderSide, posSide types.PositionSide) bool {
	return positionSideFor(orderSide) == posSide
}

// marginAsset names the asset margin and futures fees settle in.
func marginAsset(sym model.Symbol, inverse bool) string {
	if inverse {
		return sym.BaseAsset.Name
	}
	return sym.QuoteAsset.Name
}

// closesEntirely reports whether the remainder after reducing by amount
// falls below the venue's dust threshold: base min-amount for linear,
// one contract for inverse.
func closesEntirely(positionAmt, amount decimal.Decimal, sym model.Symbol, inverse bool) bool {
	rest := positionAmt.Sub(amount)
	if inverse {
		return rest.LessThan(one)
	}
	return rest.LessThan(sym.BaseAsset.MinAmount)
}
