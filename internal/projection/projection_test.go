package projection

import (
	"testing"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitOrder(externalID, userID string) model.Order {
	return model.Order{
		ID:         "id-" + externalID,
		ExternalID: externalID,
		UserID:     userID,
		Symbol:     "BTCUSDT",
		Exchange:   types.ExchangeBinance,
		Side:       types.OrderSideBuy,
		Type:       types.OrderTypeLimit,
		Price:      decimal.NewFromInt(50000),
		Amount:     decimal.NewFromFloat(0.1),
		Status:     types.OrderStatusNew,
	}
}

func TestOrderRoundTrip(t *testing.T) {
	p := New()
	p.PutOrder(limitOrder("a", "u1"))

	o, ok := p.GetOrder("BTCUSDT", "a")
	require.True(t, ok)
	assert.Equal(t, "a", o.ExternalID)

	byID, ok := p.GetOrderByID("id-a")
	require.True(t, ok)
	assert.Equal(t, "a", byID.ExternalID)

	p.RemoveOrder("BTCUSDT", "a")
	_, ok = p.GetOrder("BTCUSDT", "a")
	assert.False(t, ok)
}

func TestOrdersBySymbolFiltersExchange(t *testing.T) {
	p := New()
	a := limitOrder("a", "u1")
	b := limitOrder("b", "u1")
	b.Exchange = types.ExchangeKucoin
	p.PutOrder(a)
	p.PutOrder(b)

	got := p.OrdersBySymbol("BTCUSDT", "binance")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ExternalID)
}

func TestReadsReturnCopies(t *testing.T) {
	p := New()
	p.PutOrder(limitOrder("a", "u1"))
	o, _ := p.GetOrder("BTCUSDT", "a")
	o.Status = types.OrderStatusFilled
	again, _ := p.GetOrder("BTCUSDT", "a")
	assert.Equal(t, types.OrderStatusNew, again.Status)
}

func TestPositionIndexes(t *testing.T) {
	p := New()
	pos := model.Position{
		UUID:         "p1",
		UserID:       "u1",
		Symbol:       "BTCUSDT",
		Exchange:     types.ExchangeBinanceUsdm,
		PositionSide: types.PositionSideLong,
		PositionAmt:  decimal.NewFromFloat(0.01),
		Status:       types.PositionStatusNew,
	}
	p.PutPosition(pos)

	got, ok := p.GetPosition("BTCUSDT", "p1")
	require.True(t, ok)
	assert.Equal(t, "p1", got.UUID)

	found, ok := p.FindPosition("u1", "BTCUSDT", "binanceUsdm", "LONG")
	require.True(t, ok)
	assert.Equal(t, "p1", found.UUID)

	_, ok = p.FindPosition("u1", "BTCUSDT", "binanceUsdm", "SHORT")
	assert.False(t, ok)

	anyPos, ok := p.FindAnyPosition("u1", "BTCUSDT", "binanceUsdm")
	require.True(t, ok)
	assert.Equal(t, "p1", anyPos.UUID)

	p.RemovePosition("BTCUSDT", "p1")
	_, ok = p.GetPosition("BTCUSDT", "p1")
	assert.False(t, ok)
	assert.Empty(t, p.PositionsBySymbol("BTCUSDT", "binanceUsdm"))
}
