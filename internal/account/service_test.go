package account

import (
	"context"
	"testing"

	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/store/storetest"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*Service, *projection.Projection, *storetest.Leverages, *storetest.Hedges) {
	proj := projection.New()
	levs := storetest.NewLeverages()
	hedges := storetest.NewHedges()
	return NewService(storetest.NewWallets(), levs, hedges, proj), proj, levs, hedges
}

func TestSetLeverage(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	row, err := svc.SetLeverage(ctx, "u", "BTCUSDT", types.ExchangeBinanceUsdm, types.PositionSideBoth, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, row.Leverage)

	_, err = svc.SetLeverage(ctx, "u", "BTCUSDT", types.ExchangeBinanceUsdm, types.PositionSideBoth, 0)
	assert.ErrorIs(t, err, ErrLeverageRange)
	_, err = svc.SetLeverage(ctx, "u", "BTCUSDT", types.ExchangeBinanceUsdm, types.PositionSideBoth, 126)
	assert.ErrorIs(t, err, ErrLeverageRange)
	_, err = svc.SetLeverage(ctx, "u", "BTCUSDT", types.ExchangeBinance, types.PositionSideBoth, 10)
	assert.ErrorIs(t, err, ErrUnknownExchange)
}

func TestSetLeverageRejectedWhileLocked(t *testing.T) {
	svc, _, levs, _ := newService()
	ctx := context.Background()
	require.NoError(t, levs.Update(ctx, model.Leverage{
		UserID: "u", Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		Side: types.PositionSideBoth, Leverage: 10, Locked: true,
	}))

	_, err := svc.SetLeverage(ctx, "u", "BTCUSDT", types.ExchangeBinanceUsdm, types.PositionSideBoth, 20)
	assert.ErrorIs(t, err, ErrLeverageLocked)

	// The locked value is untouched.
	row, err := levs.Get(ctx, "u", "BTCUSDT", types.PositionSideBoth)
	require.NoError(t, err)
	assert.Equal(t, 10, row.Leverage)
}

func TestSetHedgeRejectedWithOpenExposure(t *testing.T) {
	svc, proj, _, hedges := newService()
	ctx := context.Background()

	require.NoError(t, svc.SetHedge(ctx, "u", true))
	on, err := hedges.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, on)

	proj.PutPosition(model.Position{
		UUID: "p1", UserID: "u", Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		PositionSide: types.PositionSideLong, PositionAmt: decimal.NewFromFloat(0.01),
		Status: types.PositionStatusNew,
	})
	assert.ErrorIs(t, svc.SetHedge(ctx, "u", false), ErrHedgeInUse)

	proj.RemovePosition("BTCUSDT", "p1")
	proj.PutOrder(model.Order{
		ExternalID: "o1", UserID: "u", Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		Side: types.OrderSideBuy, Type: types.OrderTypeLimit, Status: types.OrderStatusNew,
	})
	assert.ErrorIs(t, svc.SetHedge(ctx, "u", false), ErrHedgeInUse)

	// Spot orders do not pin hedge mode.
	proj.RemoveOrder("BTCUSDT", "o1")
	proj.PutOrder(model.Order{
		ExternalID: "o2", UserID: "u", Symbol: "BTCUSDT", Exchange: types.ExchangeBinance,
		Side: types.OrderSideBuy, Type: types.OrderTypeLimit, Status: types.OrderStatusNew,
	})
	assert.NoError(t, svc.SetHedge(ctx, "u", false))
}
