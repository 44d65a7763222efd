package orders

import (
	"context"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitLiquidation force-closes a position through a synthetic
// reduce-only MARKET order at the pre-computed liquidation price. It
// never raises to the caller: failures are logged and, as a last
// resort, the position is force-closed in storage.
func (s *Service) SubmitLiquidation(ctx context.Context, pos model.Position) {
	s.ExpireReduceOnly(ctx, pos.UserID, pos.Symbol, pos.Exchange)

	sym, err := s.symbols.Get(ctx, pos.Symbol, pos.Exchange)
	if err != nil {
		s.log.Error("liquidation: symbol lookup failed",
			zap.String("uuid", pos.UUID), zap.Error(err))
		s.forceClose(ctx, pos)
		return
	}
	hedge, err := s.hedges.Get(ctx, pos.UserID)
	if err != nil {
		s.log.Error("liquidation: hedge lookup failed",
			zap.String("uuid", pos.UUID), zap.Error(err))
		s.forceClose(ctx, pos)
		return
	}

	now := time.Now().UTC()
	o := model.Order{
		ExternalID:   "liquidation_" + uuid.NewString(),
		UserID:       pos.UserID,
		Symbol:       pos.Symbol,
		Exchange:     pos.Exchange,
		Side:         pos.PositionSide.CloseSide(),
		Type:         types.OrderTypeMarket,
		Price:        pos.LiquidationPrice,
		Amount:       pos.PositionAmt,
		QuoteAmount:  pos.PositionAmt.Mul(pos.LiquidationPrice),
		FeePerc:      types.FeeRate(pos.Exchange, types.FeeRoleTaker),
		Status:       types.OrderStatusNew,
		ReduceOnly:   true,
		PositionSide: pos.PositionSide,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !hedge {
		o.PositionSide = types.PositionSideBoth
	}
	o, err = s.orders.Insert(ctx, o)
	if err != nil {
		s.log.Error("liquidation: order insert failed",
			zap.String("uuid", pos.UUID), zap.Error(err))
		s.forceClose(ctx, pos)
		return
	}
	if err := s.settle.Futures(ctx, &o, sym, pos.LiquidationPrice, hedge); err != nil {
		s.log.Error("liquidation: settlement failed",
			zap.String("uuid", pos.UUID), zap.Error(err))
		s.forceClose(ctx, pos)
		return
	}
	if err := s.orders.Update(ctx, o); err != nil {
		s.log.Error("liquidation: order update failed",
			zap.String("externalId", o.ExternalID), zap.Error(err))
	}
	s.events.Order(o.UserID, o)
}

// forceClose marks the position closed in storage and drops it from the
// projection when the normal liquidation path cannot run.
func (s *Service) forceClose(ctx context.Context, pos model.Position) {
	pos.Status = types.PositionStatusClosed
	pos.ClosePrice = pos.LiquidationPrice
	pos.UpdatedAt = time.Now().UTC()
	if err := s.positions.Update(ctx, pos); err != nil {
		s.log.Error("force close failed", zap.String("uuid", pos.UUID), zap.Error(err))
	}
	s.proj.RemovePosition(pos.Symbol, pos.UUID)
	if err := s.watch.Remove(ctx, watch.Key(pos.Symbol, pos.Exchange), pos.UUID); err != nil {
		s.log.Warn("watch remove failed", zap.String("uuid", pos.UUID), zap.Error(err))
	}
}
