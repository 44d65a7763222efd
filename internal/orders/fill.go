package orders

import (
	"context"

	"papertrade/internal/locks"
	"papertrade/internal/model"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessLimitFill applies a tick to one resting limit order. The
// matching engine already screened the price condition; the fill size
// rules live here. Serialized per externalId, and the order is
// re-fetched from the projection once inside the lock.
func (s *Service) ProcessLimitFill(ctx context.Context, symbol string, externalID string, tick model.Ticker) {
	err := s.locks.WithLock(locks.UpdateOrderKey(externalID), func() error {
		return s.fillLocked(ctx, symbol, externalID, tick)
	})
	if err != nil {
		s.log.Error("limit fill failed",
			zap.String("symbol", symbol),
			zap.String("externalId", externalID),
			zap.Error(err))
	}
}

func (s *Service) fillLocked(ctx context.Context, symbol, externalID string, tick model.Ticker) error {
	o, ok := s.proj.GetOrder(symbol, externalID)
	if !ok || !o.Live() {
		return nil
	}
	sym, err := s.symbols.Get(ctx, o.Symbol, o.Exchange)
	if err != nil {
		return err
	}

	if o.Exchange.Futures() {
		hedge, err := s.hedges.Get(ctx, o.UserID)
		if err != nil {
			return err
		}
		// Derivatives fill the remainder in full at the order price.
		if err := s.settle.Futures(ctx, &o, sym, o.Price, hedge); err != nil {
			return err
		}
		return s.finishFill(ctx, o)
	}

	touchedPrice, touchedSize := touched(o.Side, tick)
	remaining := o.Remaining()
	var fill decimal.Decimal
	if priceStrictlyBetter(o.Side, o.Price, touchedPrice) {
		fill = remaining
	} else {
		fill = decimal.Min(remaining, touchedSize)
	}
	if !fill.IsPositive() {
		return nil
	}
	if err := s.settle.SpotLimitFill(ctx, &o, sym, fill); err != nil {
		return err
	}
	return s.finishFill(ctx, o)
}

func (s *Service) finishFill(ctx context.Context, o model.Order) error {
	if err := s.orders.Update(ctx, o); err != nil {
		return err
	}
	if o.Status.Terminal() {
		s.proj.RemoveOrder(o.Symbol, o.ExternalID)
		if err := s.watch.Remove(ctx, watch.Key(o.Symbol, o.Exchange), o.ExternalID); err != nil {
			s.log.Warn("watch remove failed", zap.String("externalId", o.ExternalID), zap.Error(err))
		}
	} else {
		s.proj.PutOrder(o)
	}
	s.events.Order(o.UserID, o)
	return nil
}

// touched returns the quote side a resting order executes against: the
// bid for sells, the ask for buys.
func touched(side types.OrderSide, tick model.Ticker) (decimal.Decimal, decimal.Decimal) {
	if side == types.OrderSideSell {
		return tick.BestBid, tick.BestBidQnt
	}
	return tick.BestAsk, tick.BestAskQnt
}

func priceStrictlyBetter(side types.OrderSide, price, touchedPrice decimal.Decimal) bool {
	if side == types.OrderSideSell {
		return price.LessThan(touchedPrice)
	}
	return price.GreaterThan(touchedPrice)
}
