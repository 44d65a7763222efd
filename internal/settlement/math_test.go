package settlement

import (
	"testing"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMarginLinear(t *testing.T) {
	// 0.01 BTC at 50000 with 10x leverage locks 50 USDT.
	got := Margin(d("0.01"), d("50000"), 10, false, decimal.Zero)
	assert.True(t, got.Equal(d("50")), got.String())
}

func TestMarginInverse(t *testing.T) {
	// 100 contracts of size 10 at 50000 with 5x leverage:
	// 100*10/50000/5 = 0.004 BTC.
	got := Margin(d("100"), d("50000"), 5, true, d("10"))
	assert.True(t, got.Equal(d("0.004")), got.String())
}

func TestFuturesFee(t *testing.T) {
	linear := FuturesFee(d("0.01"), d("50000"), d("0.0004"), false, decimal.Zero)
	assert.True(t, linear.Equal(d("0.2")), linear.String())

	inverse := FuturesFee(d("100"), d("50000"), d("0.0005"), true, d("10"))
	assert.True(t, inverse.Equal(d("0.00001")), inverse.String())
}

func TestLiquidationPriceLeverageAboveOne(t *testing.T) {
	// 50000 * (1 - 1/10) * (1 - 0.0004) = 44982.
	long := LiquidationPrice(d("50000"), types.PositionSideLong, d("0.0004"), 10)
	assert.True(t, long.Equal(d("44982")), long.String())

	short := LiquidationPrice(d("50000"), types.PositionSideShort, d("0.0004"), 10)
	assert.True(t, short.Equal(d("55022")), short.String())
}

func TestLiquidationPriceLeverageOne(t *testing.T) {
	long := LiquidationPrice(d("50000"), types.PositionSideLong, d("0.0004"), 1)
	assert.True(t, long.Equal(d("20")), long.String())
	// Near zero relative to entry.
	assert.True(t, long.LessThan(d("50000").Div(d("100"))))

	short := LiquidationPrice(d("50000"), types.PositionSideShort, d("0.0004"), 1)
	assert.True(t, short.Equal(d("125000000")), short.String())
	assert.True(t, short.GreaterThan(d("50000").Mul(d("100"))))
}

func TestRealizedPnLLinear(t *testing.T) {
	// LONG 0.01 from 50000 closed at 44982 with 0.18 fee.
	pnl := RealizedPnL(d("0.01"), d("50000"), d("44982"), types.PositionSideLong, false, decimal.Zero, d("0.18"))
	assert.True(t, pnl.Equal(d("-50.36")), pnl.String())

	short := RealizedPnL(d("0.01"), d("50000"), d("44982"), types.PositionSideShort, false, decimal.Zero, decimal.Zero)
	assert.True(t, short.Equal(d("50.18")), short.String())
}

func TestRealizedPnLInverse(t *testing.T) {
	// LONG 100 contracts size 10: 1000/40000 - 1000/50000 for a short
	// move in the trader's favor when closing higher.
	pnl := RealizedPnL(d("100"), d("40000"), d("50000"), types.PositionSideLong, true, d("10"), decimal.Zero)
	assert.True(t, pnl.Equal(d("0.005")), pnl.String())
}

func TestClosesEntirely(t *testing.T) {
	sym := model.Symbol{
		BaseAsset:  model.SymbolAsset{Name: "BTC", MinAmount: d("0.001")},
		QuoteAsset: model.SymbolAsset{Name: "USDT"},
	}
	assert.True(t, closesEntirely(d("0.01"), d("0.01"), sym, false))
	assert.True(t, closesEntirely(d("0.01"), d("0.0095"), sym, false))
	assert.False(t, closesEntirely(d("0.01"), d("0.005"), sym, false))

	// Inverse threshold is one contract.
	assert.True(t, closesEntirely(d("10"), d("9.5"), sym, true))
	assert.False(t, closesEntirely(d("10"), d("8"), sym, true))
}

func TestDirectionHelpers(t *testing.T) {
	assert.Equal(t, types.PositionSideLong, positionSideFor(types.OrderSideBuy))
	assert.Equal(t, types.PositionSideShort, positionSideFor(types.OrderSideSell))
	assert.True(t, sameDirection(types.OrderSideBuy, types.PositionSideLong))
	assert.False(t, sameDirection(types.OrderSideSell, types.PositionSideLong))

	sym := model.Symbol{
		BaseAsset:  model.SymbolAsset{Name: "BTC"},
		QuoteAsset: model.SymbolAsset{Name: "USDT"},
	}
	assert.Equal(t, "USDT", marginAsset(sym, false))
	assert.Equal(t, "BTC", marginAsset(sym, true))
}
