package matching

import (
	"context"
	"sort"

	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/types"

	"go.uber.org/zap"
)

// Lifecycle is the slice of the order service the engine drives.
type Lifecycle interface {
	ProcessLimitFill(ctx context.Context, symbol string, externalID string, tick model.Ticker)
	SubmitLiquidation(ctx context.Context, pos model.Position)
}

// Engine walks the open set for each tick of a per-exchange batch.
// Liquidations run before fills within a batch. The intake worker
// already holds the per-exchange ticker lock when calling in.
type Engine struct {
	proj      *projection.Projection
	lifecycle Lifecycle
	log       *zap.Logger
}

func NewEngine(proj *projection.Projection, lifecycle Lifecycle, log *zap.Logger) *Engine {
	return &Engine{proj: proj, lifecycle: lifecycle, log: log.Named("matching")}
}

func (e *Engine) ProcessBatch(ctx context.Context, exchange types.Exchange, batch map[string]model.Ticker) {
	for symbol, tick := range batch {
		e.scanLiquidations(ctx, symbol, exchange, tick)
		e.scanLimitOrders(ctx, symbol, exchange, tick)
	}
}

// scanLiquidations fires LONG positions whose trigger is at or above
// the bid (worst trigger first) and SHORT positions whose trigger is at
// or below the ask.
func (e *Engine) scanLiquidations(ctx context.Context, symbol string, exchange types.Exchange, tick model.Ticker) {
	positions := e.proj.PositionsBySymbol(symbol, string(exchange))
	if len(positions) == 0 {
		return
	}
	var longs, shorts []model.Position
	for _, p := range positions {
		if !p.Open() {
			continue
		}
		switch {
		case p.PositionSide == types.PositionSideShort:
			if tick.BestAsk.IsPositive() && p.LiquidationPrice.LessThanOrEqual(tick.BestAsk) {
				shorts = append(shorts, p)
			}
		default:
			// LONG, and netted one-way positions opened by buys.
			if tick.BestBid.IsPositive() && p.LiquidationPrice.GreaterThanOrEqual(tick.BestBid) {
				longs = append(longs, p)
			}
		}
	}
	sort.Slice(longs, func(i, j int) bool {
		return longs[i].LiquidationPrice.LessThan(longs[j].LiquidationPrice)
	})
	sort.Slice(shorts, func(i, j int) bool {
		return shorts[i].LiquidationPrice.GreaterThan(shorts[j].LiquidationPrice)
	})
	for _, p := range longs {
		e.log.Info("liquidating position",
			zap.String("uuid", p.UUID),
			zap.String("symbol", symbol),
			zap.String("liquidationPrice", p.LiquidationPrice.String()))
		e.lifecycle.SubmitLiquidation(ctx, p)
	}
	for _, p := range shorts {
		e.log.Info("liquidating position",
			zap.String("uuid", p.UUID),
			zap.String("symbol", symbol),
			zap.String("liquidationPrice", p.LiquidationPrice.String()))
		e.lifecycle.SubmitLiquidation(ctx, p)
	}
}

// scanLimitOrders selects sells at or below the bid (lowest first) and
// buys at or above the ask (highest first) and hands each to the fill
// path. Spot candidates additionally need displayed size on the touched
// side.
func (e *Engine) scanLimitOrders(ctx context.Context, symbol string, exchange types.Exchange, tick model.Ticker) {
	open := e.proj.OrdersBySymbol(symbol, string(exchange))
	if len(open) == 0 {
		return
	}
	spot := exchange.Spot()
	var sells, buys []model.Order
	for _, o := range open {
		if !o.Live() || o.Type != types.OrderTypeLimit {
			continue
		}
		switch o.Side {
		case types.OrderSideSell:
			if !tick.BestBid.IsPositive() || o.Price.GreaterThan(tick.BestBid) {
				continue
			}
			if spot && !tick.BestBidQnt.IsPositive() {
				continue
			}
			sells = append(sells, o)
		case types.OrderSideBuy:
			if !tick.BestAsk.IsPositive() || o.Price.LessThan(tick.BestAsk) {
				continue
			}
			if spot && !tick.BestAskQnt.IsPositive() {
				continue
			}
			buys = append(buys, o)
		}
	}
	sort.Slice(sells, func(i, j int) bool { return sells[i].Price.LessThan(sells[j].Price) })
	sort.Slice(buys, func(i, j int) bool { return buys[i].Price.GreaterThan(buys[j].Price) })
	for _, o := range sells {
		e.lifecycle.ProcessLimitFill(ctx, symbol, o.ExternalID, tick)
	}
	for _, o := range buys {
		e.lifecycle.ProcessLimitFill(ctx, symbol, o.ExternalID, tick)
	}
}
