package orders

import (
	"context"
	"testing"

	"papertrade/internal/locks"
	"papertrade/internal/marketdata"
	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/settlement"
	"papertrade/internal/store/storetest"
	"papertrade/internal/symbols"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeResolver struct {
	users map[string]model.User // key -> user; secret must match user.SecretHash verbatim
}

func (f *fakeResolver) Resolve(_ context.Context, apiKey, apiSecret string) (model.User, error) {
	u, ok := f.users[apiKey]
	if ok && u.SecretHash == apiSecret {
		return u, nil
	}
	return model.User{}, ErrUserNotFound
}

type recordedEvents struct {
	orders    []model.Order
	balances  int
	positions []model.Position
}

func (r *recordedEvents) Order(_ string, o model.Order)       { r.orders = append(r.orders, o) }
func (r *recordedEvents) Balance(string, []model.WalletBalance) { r.balances++ }
func (r *recordedEvents) Position(_ string, p model.Position) { r.positions = append(r.positions, p) }

type recordingSub struct {
	subscribed   []string
	unsubscribed []string
}

func (f *recordingSub) Subscribe(_ context.Context, key string) error {
	f.subscribed = append(f.subscribed, key)
	return nil
}

func (f *recordingSub) Unsubscribe(_ context.Context, key string) error {
	f.unsubscribed = append(f.unsubscribed, key)
	return nil
}

type fixture struct {
	svc     *Service
	orders  *storetest.Orders
	pos     *storetest.Positions
	wallets *storetest.Wallets
	levs    *storetest.Leverages
	hedges  *storetest.Hedges
	syms    *storetest.Symbols
	proj    *projection.Projection
	set     *watch.Set
	sub     *recordingSub
	prices  *marketdata.PriceCache
	events  *recordedEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		orders:  storetest.NewOrders(),
		pos:     storetest.NewPositions(),
		wallets: storetest.NewWallets(),
		levs:    storetest.NewLeverages(),
		hedges:  storetest.NewHedges(),
		syms:    storetest.NewSymbols(),
		proj:    projection.New(),
		set:     watch.NewSet(),
		sub:     &recordingSub{},
		events:  &recordedEvents{},
	}
	f.prices = marketdata.NewPriceCache(nil, nil, log)
	wc := watch.NewController(f.set, f.sub)
	lm := locks.NewManager()
	settleSvc := settlement.NewService(f.wallets, f.pos, f.levs, f.proj, wc, lm, f.events, log)
	cache := symbols.NewCache(nil, f.syms, log)
	resolver := &fakeResolver{users: map[string]model.User{
		"key-a": {ID: "user-a", APIKey: "key-a", SecretHash: "sec-a"},
		"key-b": {ID: "user-b", APIKey: "key-b", SecretHash: "sec-b"},
	}}
	f.svc = NewService(resolver, cache, f.prices, f.orders, f.pos, f.wallets, f.levs, f.hedges, settleSvc, f.proj, wc, lm, f.events, log)

	require.NoError(t, f.syms.Upsert(context.Background(), model.Symbol{
		Pair: "BTCUSDT", Exchange: types.ExchangeBinance,
		BaseAsset:  model.SymbolAsset{Name: "BTC", MinAmount: d("0.0001")},
		QuoteAsset: model.SymbolAsset{Name: "USDT", MinAmount: d("10")},
	}))
	require.NoError(t, f.syms.Upsert(context.Background(), model.Symbol{
		Pair: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		BaseAsset:  model.SymbolAsset{Name: "BTC", MinAmount: d("0.001")},
		QuoteAsset: model.SymbolAsset{Name: "USDT", MinAmount: d("10")},
	}))
	f.prices.Set("BTCUSDT", types.ExchangeBinance, d("50000"))
	f.prices.Set("BTCUSDT", types.ExchangeBinanceUsdm, d("50000"))
	return f
}

func (f *fixture) balance(t *testing.T, user, asset string) model.WalletBalance {
	t.Helper()
	b, err := f.wallets.Get(context.Background(), user, asset)
	require.NoError(t, err)
	return b
}

func spotLimitBuy(externalID string) CreateOrderRequest {
	return CreateOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		Symbol: "BTCUSDT", Exchange: types.ExchangeBinance,
		Side: types.OrderSideBuy, Type: types.OrderTypeLimit,
		Price: d("50000"), Amount: d("0.1"), ExternalID: externalID,
	}
}

func TestCreateSpotLimitBuyReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("10000")}))

	o, err := f.svc.CreateOrder(ctx, spotLimitBuy("x1"))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusNew, o.Status)
	assert.Equal(t, types.OrderTypeLimit, o.Type)
	// Maker fee pinned at entry.
	assert.True(t, o.FeePerc.Equal(d("0.001")))

	usdt := f.balance(t, "user-a", "USDT")
	assert.True(t, usdt.Free.Equal(d("5000")))
	assert.True(t, usdt.Locked.Equal(d("5000")))

	_, live := f.proj.GetOrder("BTCUSDT", "x1")
	assert.True(t, live)
	assert.True(t, f.set.Has("BTCUSDT@binance", "x1"))
	assert.Equal(t, []string{"BTCUSDT@binance"}, f.sub.subscribed)
}

func TestCreateMarketableLimitExecutesAsMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("10000")}))

	req := spotLimitBuy("x2")
	req.Price = d("51000") // crosses the 50000 quote
	o, err := f.svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.OrderTypeMarket, o.Type)
	assert.Equal(t, types.OrderStatusFilled, o.Status)
	// Executed at the current price, not the limit.
	assert.True(t, o.AvgFilledPrice.Equal(d("50000")))
	// Taker role (spot taker == maker rate).
	assert.True(t, o.FeePerc.Equal(d("0.001")))

	usdt := f.balance(t, "user-a", "USDT")
	assert.True(t, usdt.Free.Equal(d("5000")))
	assert.True(t, usdt.Locked.Equal(d("0")))
	assert.True(t, f.balance(t, "user-a", "BTC").Free.Equal(d("0.0999")))
}

func TestCreateOrderRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	req := spotLimitBuy("x3")
	req.APISecret = "wrong"
	_, err := f.svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateOrderInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("100")}))
	_, err := f.svc.CreateOrder(ctx, spotLimitBuy("x4"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	// No state change.
	assert.True(t, f.balance(t, "user-a", "USDT").Free.Equal(d("100")))
	_, live := f.proj.GetOrder("BTCUSDT", "x4")
	assert.False(t, live)
}

func TestCreateOrderMaxOrdersPerSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.syms.Upsert(ctx, model.Symbol{
		Pair: "BTCUSDT", Exchange: types.ExchangeBinance,
		BaseAsset:  model.SymbolAsset{Name: "BTC", MinAmount: d("0.0001")},
		QuoteAsset: model.SymbolAsset{Name: "USDT", MinAmount: d("10")},
		MaxOrders:  1,
	}))
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("20000")}))

	_, err := f.svc.CreateOrder(ctx, spotLimitBuy("m1"))
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, spotLimitBuy("m2"))
	assert.ErrorIs(t, err, ErrTooManyOrders)
}

func TestCreateOrderDuplicateExternalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("20000")}))
	_, err := f.svc.CreateOrder(ctx, spotLimitBuy("dup"))
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, spotLimitBuy("dup"))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestCreateFuturesHedgeRequiresPositionSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.hedges.Set(ctx, "user-a", true))
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("1000")}))

	req := CreateOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Amount: d("0.01"),
	}
	_, err := f.svc.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, ErrHedgeMode)
}

func TestCreateFuturesReduceOnlyWithoutPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("1000")}))

	req := CreateOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		Side: types.OrderSideSell, Type: types.OrderTypeMarket,
		Amount: d("0.01"), ReduceOnly: true,
	}
	_, err := f.svc.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, ErrReduceRejected)
}

func TestCreateFuturesMarketOpensPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("1000")}))
	require.NoError(t, f.levs.Update(ctx, model.Leverage{UserID: "user-a", Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm, Side: types.PositionSideBoth, Leverage: 10}))

	req := CreateOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		Symbol: "BTCUSDT", Exchange: types.ExchangeBinanceUsdm,
		Side: types.OrderSideBuy, Type: types.OrderTypeMarket,
		Amount: d("0.01"),
	}
	o, err := f.svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, o.Status)
	// Linear taker rate.
	assert.True(t, o.FeePerc.Equal(d("0.0004")))

	usdt := f.balance(t, "user-a", "USDT")
	assert.True(t, usdt.Free.Equal(d("949.8")), usdt.Free.String())
	assert.True(t, usdt.Locked.Equal(d("50")))

	pos, ok := f.proj.FindAnyPosition("user-a", "BTCUSDT", "binanceUsdm")
	require.True(t, ok)
	assert.True(t, pos.LiquidationPrice.Equal(d("44982")))
}

func TestCancelRestoresReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("10000")}))
	_, err := f.svc.CreateOrder(ctx, spotLimitBuy("c1"))
	require.NoError(t, err)

	o, err := f.svc.CancelOrder(ctx, CancelOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		ExternalID: "c1", Symbol: "BTCUSDT",
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCanceled, o.Status)

	usdt := f.balance(t, "user-a", "USDT")
	assert.True(t, usdt.Free.Equal(d("10000")))
	assert.True(t, usdt.Locked.Equal(d("0")))

	_, live := f.proj.GetOrder("BTCUSDT", "c1")
	assert.False(t, live)

	// Cancel again: terminal.
	_, err = f.svc.CancelOrder(ctx, CancelOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		ExternalID: "c1", Symbol: "BTCUSDT",
	})
	assert.ErrorIs(t, err, ErrOrderTerminal)
}

func TestCancelUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelOrder(context.Background(), CancelOrderRequest{
		APIKey: "key-a", APISecret: "sec-a",
		ExternalID: "ghost", Symbol: "BTCUSDT",
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSubscriptionSharedAcrossUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-a", Asset: "USDT", Free: d("10000")}))
	require.NoError(t, f.wallets.Set(ctx, model.WalletBalance{UserID: "user-b", Asset: "USDT", Free: d("10000")}))

	_, err := f.svc.CreateOrder(ctx, spotLimitBuy("a1"))
	require.NoError(t, err)
	reqB := spotLimitBuy("b1")
	reqB.APIKey, reqB.APISecret = "key-b", "sec-b"
	_, err = f.svc.CreateOrder(ctx, reqB)
	require.NoError(t, err)

	// One subscription serves both holders.
	assert.Equal(t, []string{"BTCUSDT@binance"}, f.sub.subscribed)

	_, err = f.svc.CancelOrder(ctx, CancelOrderRequest{APIKey: "key-a", APISecret: "sec-a", ExternalID: "a1", Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Empty(t, f.sub.unsubscribed)

	_, err = f.svc.CancelOrder(ctx, CancelOrderRequest{APIKey: "key-b", APISecret: "sec-b", ExternalID: "b1", Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT@binance"}, f.sub.unsubscribed)
}
