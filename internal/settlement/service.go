package settlement

import (
	"context"
	"time"

	"papertrade/internal/locks"
	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/store"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Events receives balance and position pushes; order events are emitted
// by the lifecycle layer. Delivery is best-effort.
type Events interface {
	Balance(userID string, balances []model.WalletBalance)
	Position(userID string, p model.Position)
}

// Service applies balance and position transitions for fills. Callers
// hold the relevant order or ticker lock; the service itself only nests
// the Common leverage/position locks underneath.
type Service struct {
	wallets   store.Wallets
	positions store.Positions
	leverages store.Leverages
	proj      *projection.Projection
	watch     *watch.Controller
	locks     *locks.Manager
	events    Events
	log       *zap.Logger
}

func NewService(wallets store.Wallets, positions store.Positions, leverages store.Leverages, proj *projection.Projection, wc *watch.Controller, lm *locks.Manager, events Events, log *zap.Logger) *Service {
	return &Service{
		wallets:   wallets,
		positions: positions,
		leverages: leverages,
		proj:      proj,
		watch:     wc,
		locks:     lm,
		events:    events,
		log:       log.Named("settlement"),
	}
}

// SpotMarket settles an immediate spot execution at price. BUY fees are
// base-denominated, SELL fees quote-denominated.
func (s *Service) SpotMarket(ctx context.Context, o *model.Order, sym model.Symbol, price decimal.Decimal) error {
	quoteAmount := o.Amount.Mul(price)
	if o.Side == types.OrderSideBuy {
		feeBase := o.Amount.Mul(o.FeePerc)
		if err := s.wallets.Apply(ctx, o.UserID, sym.QuoteAsset.Name, quoteAmount.Neg(), decimal.Zero); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, o.UserID, sym.BaseAsset.Name, o.Amount.Sub(feeBase), decimal.Zero); err != nil {
			return err
		}
		o.Fee = feeBase
	} else {
		feeQuote := quoteAmount.Mul(o.FeePerc)
		if err := s.wallets.Apply(ctx, o.UserID, sym.BaseAsset.Name, o.Amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, o.UserID, sym.QuoteAsset.Name, quoteAmount.Sub(feeQuote), decimal.Zero); err != nil {
			return err
		}
		o.Fee = feeQuote
	}
	o.FilledAmount = o.Amount
	o.FilledQuoteAmount = quoteAmount
	o.AvgFilledPrice = price
	o.Status = types.OrderStatusFilled
	s.publishBalance(ctx, o.UserID)
	return nil
}

// SpotLimitFill settles a partial or full fill of a resting spot limit
// order at the order price, consuming the reservation made at entry.
func (s *Service) SpotLimitFill(ctx context.Context, o *model.Order, sym model.Symbol, fillAmount decimal.Decimal) error {
	fillQuote := fillAmount.Mul(o.Price)
	if o.Side == types.OrderSideBuy {
		feeBase := fillAmount.Mul(o.FeePerc)
		if err := s.wallets.Apply(ctx, o.UserID, sym.QuoteAsset.Name, decimal.Zero, fillQuote.Neg()); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, o.UserID, sym.BaseAsset.Name, fillAmount.Sub(feeBase), decimal.Zero); err != nil {
			return err
		}
		o.Fee = o.Fee.Add(feeBase)
	} else {
		feeQuote := fillQuote.Mul(o.FeePerc)
		if err := s.wallets.Apply(ctx, o.UserID, sym.BaseAsset.Name, decimal.Zero, fillAmount.Neg()); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, o.UserID, sym.QuoteAsset.Name, fillQuote.Sub(feeQuote), decimal.Zero); err != nil {
			return err
		}
		o.Fee = o.Fee.Add(feeQuote)
	}
	o.FilledAmount = o.FilledAmount.Add(fillAmount)
	o.FilledQuoteAmount = o.FilledQuoteAmount.Add(fillQuote)
	o.AvgFilledPrice = o.FilledQuoteAmount.Div(o.FilledAmount)
	if o.Remaining().IsPositive() {
		o.Status = types.OrderStatusPartiallyFilled
	} else {
		o.Status = types.OrderStatusFilled
	}
	s.publishBalance(ctx, o.UserID)
	return nil
}

// ReleaseSpotReservation returns the unfilled reservation of a spot
// limit order on cancel or expiry.
func (s *Service) ReleaseSpotReservation(ctx context.Context, o model.Order, sym model.Symbol) error {
	var asset string
	var amount decimal.Decimal
	if o.Side == types.OrderSideBuy {
		asset = sym.QuoteAsset.Name
		amount = o.QuoteAmount.Sub(o.FilledQuoteAmount)
	} else {
		asset = sym.BaseAsset.Name
		amount = o.Remaining()
	}
	if !amount.IsPositive() {
		return nil
	}
	if err := s.wallets.Apply(ctx, o.UserID, asset, amount, amount.Neg()); err != nil {
		return err
	}
	s.publishBalance(ctx, o.UserID)
	return nil
}

// ReserveSpot locks the funds backing a freshly booked spot limit
// order: quote notional for BUY, base amount for SELL.
func (s *Service) ReserveSpot(ctx context.Context, o model.Order, sym model.Symbol) error {
	var asset string
	var amount decimal.Decimal
	if o.Side == types.OrderSideBuy {
		asset = sym.QuoteAsset.Name
		amount = o.QuoteAmount
	} else {
		asset = sym.BaseAsset.Name
		amount = o.Amount
	}
	if err := s.wallets.Apply(ctx, o.UserID, asset, amount.Neg(), amount); err != nil {
		return err
	}
	s.publishBalance(ctx, o.UserID)
	return nil
}

// Futures settles a derivatives fill of the whole order amount at
// price, walking the open/increase/reduce/close/flip case split. The
// order may be rewritten in place (reduce-only trim).
func (s *Service) Futures(ctx context.Context, o *model.Order, sym model.Symbol, price decimal.Decimal, hedge bool) error {
	inverse := o.Exchange.Inverse()
	cs := sym.ContractSize()
	asset := marginAsset(sym, inverse)

	pos, found := s.findPosition(o, hedge)
	if !found {
		return s.openPosition(ctx, o, sym, price, asset, inverse, cs, hedge)
	}
	if sameDirection(o.Side, pos.PositionSide) {
		return s.increasePosition(ctx, o, pos, price, asset, inverse, cs)
	}

	fee := FuturesFee(o.Amount, price, o.FeePerc, inverse, cs)
	if o.ReduceOnly && o.Amount.GreaterThan(pos.PositionAmt) {
		// Trim the order to the position and refund the fee on the
		// excess; the caller persists the rewritten order.
		o.Amount = pos.PositionAmt
		o.QuoteAmount = o.Amount.Mul(o.Price)
		fee = FuturesFee(o.Amount, price, o.FeePerc, inverse, cs)
	}
	if o.Amount.GreaterThan(pos.PositionAmt) {
		return s.flipPosition(ctx, o, pos, price, asset, inverse, cs, fee, hedge)
	}
	if closesEntirely(pos.PositionAmt, o.Amount, sym, inverse) {
		return s.closePosition(ctx, o, pos, price, asset, inverse, cs, fee, hedge)
	}
	return s.reducePosition(ctx, o, pos, price, asset, inverse, cs, fee)
}

func (s *Service) findPosition(o *model.Order, hedge bool) (model.Position, bool) {
	if hedge {
		return s.proj.FindPosition(o.UserID, o.Symbol, string(o.Exchange), string(o.PositionSide))
	}
	return s.proj.FindAnyPosition(o.UserID, o.Symbol, string(o.Exchange))
}

func (s *Service) openPosition(ctx context.Context, o *model.Order, sym model.Symbol, price decimal.Decimal, asset string, inverse bool, cs decimal.Decimal, hedge bool) error {
	side := positionSideFor(o.Side)
	levSide := leverageSide(side, hedge)
	lev, err := s.leverages.Ensure(ctx, o.UserID, o.Symbol, o.Exchange, levSide)
	if err != nil {
		return err
	}
	m := Margin(o.Amount, price, lev.Leverage, inverse, cs)
	fee := FuturesFee(o.Amount, price, o.FeePerc, inverse, cs)
	now := time.Now().UTC()
	pos := model.Position{
		UUID:             uuid.NewString(),
		UserID:           o.UserID,
		Symbol:           o.Symbol,
		Exchange:         o.Exchange,
		PositionSide:     side,
		PositionAmt:      o.Amount,
		EntryPrice:       price,
		Margin:           m,
		LiquidationPrice: LiquidationPrice(price, side, o.FeePerc, lev.Leverage),
		Leverage:         lev.Leverage,
		Profit:           fee.Neg(),
		Fee:              fee,
		Status:           types.PositionStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.positions.Insert(ctx, pos); err != nil {
		return err
	}
	if err := s.wallets.Apply(ctx, o.UserID, asset, m.Add(fee).Neg(), m); err != nil {
		return err
	}
	if err := s.setLeverageLocked(ctx, o.UserID, o.Symbol, o.Exchange, levSide, true); err != nil {
		return err
	}
	s.proj.PutPosition(pos)
	if err := s.watch.Add(ctx, watch.Key(o.Symbol, o.Exchange), pos.UUID); err != nil {
		s.log.Warn("watch add failed", zap.String("uuid", pos.UUID), zap.Error(err))
	}
	s.fillOrder(o, price, fee)
	s.events.Position(o.UserID, pos)
	s.publishBalance(ctx, o.UserID)
	return nil
}

func (s *Service) increasePosition(ctx context.Context, o *model.Order, pos model.Position, price decimal.Decimal, asset string, inverse bool, cs decimal.Decimal) error {
	m := Margin(o.Amount, price, pos.Leverage, inverse, cs)
	fee := FuturesFee(o.Amount, price, o.FeePerc, inverse, cs)
	newAmt := pos.PositionAmt.Add(o.Amount)
	newEntry := pos.PositionAmt.Mul(pos.EntryPrice).Add(o.Amount.Mul(price)).Div(newAmt)
	pos.PositionAmt = newAmt
	pos.EntryPrice = newEntry
	pos.Margin = pos.Margin.Add(m)
	pos.LiquidationPrice = LiquidationPrice(newEntry, pos.PositionSide, o.FeePerc, pos.Leverage)
	pos.Profit = pos.Profit.Sub(fee)
	pos.Fee = pos.Fee.Add(fee)
	pos.UpdatedAt = time.Now().UTC()
	if err := s.positions.Update(ctx, pos); err != nil {
		return err
	}
	if err := s.wallets.Apply(ctx, o.UserID, asset, m.Add(fee).Neg(), m); err != nil {
		return err
	}
	s.proj.PutPosition(pos)
	s.fillOrder(o, price, fee)
	s.events.Position(o.UserID, pos)
	s.publishBalance(ctx, o.UserID)
	return nil
}

func (s *Service) closePosition(ctx context.Context, o *model.Order, pos model.Position, price decimal.Decimal, asset string, inverse bool, cs decimal.Decimal, fee decimal.Decimal, hedge bool) error {
	return s.locks.WithLock(locks.PositionKey(pos.UUID), func() error {
		current, ok := s.proj.GetPosition(pos.Symbol, pos.UUID)
		if !ok {
			// Already closed by a concurrent path.
			return nil
		}
		pos = current
		pnl := RealizedPnL(pos.PositionAmt, pos.EntryPrice, price, pos.PositionSide, inverse, cs, fee)
		pos.Status = types.PositionStatusClosed
		pos.ClosePrice = price
		pos.Profit = pos.Profit.Add(pnl)
		pos.Fee = pos.Fee.Add(fee)
		margin := pos.Margin
		pos.Margin = decimal.Zero
		pos.PositionAmt = decimal.Zero
		pos.UpdatedAt = time.Now().UTC()
		if err := s.positions.Update(ctx, pos); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, pos.UserID, asset, margin.Add(pnl), margin.Neg()); err != nil {
			return err
		}
		levSide := leverageSide(pos.PositionSide, hedge)
		if err := s.setLeverageLocked(ctx, pos.UserID, pos.Symbol, pos.Exchange, levSide, false); err != nil {
			return err
		}
		s.proj.RemovePosition(pos.Symbol, pos.UUID)
		if err := s.watch.Remove(ctx, watch.Key(pos.Symbol, pos.Exchange), pos.UUID); err != nil {
			s.log.Warn("watch remove failed", zap.String("uuid", pos.UUID), zap.Error(err))
		}
		s.fillOrder(o, price, fee)
		s.events.Position(pos.UserID, pos)
		s.publishBalance(ctx, pos.UserID)
		return nil
	})
}

// flipPosition closes the existing leg and opens the remainder on the
// opposite side. diffMargin unwinds the old leg at its own entry price
// and leverage.
func (s *Service) flipPosition(ctx context.Context, o *model.Order, pos model.Position, price decimal.Decimal, asset string, inverse bool, cs decimal.Decimal, fee decimal.Decimal, hedge bool) error {
	closingFee := FuturesFee(pos.PositionAmt, price, o.FeePerc, inverse, cs)
	m := Margin(o.Amount, price, pos.Leverage, inverse, cs)
	diffMargin := Margin(pos.PositionAmt, pos.EntryPrice, pos.Leverage, inverse, cs)
	remainder := o.Amount.Sub(pos.PositionAmt)

	if err := s.closePosition(ctx, o, pos, price, asset, inverse, cs, closingFee, hedge); err != nil {
		return err
	}

	newMargin := m.Sub(diffMargin)
	newFee := fee.Sub(closingFee)
	side := positionSideFor(o.Side)
	levSide := leverageSide(side, hedge)
	lev, err := s.leverages.Ensure(ctx, o.UserID, o.Symbol, o.Exchange, levSide)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	next := model.Position{
		UUID:             uuid.NewString(),
		UserID:           o.UserID,
		Symbol:           o.Symbol,
		Exchange:         o.Exchange,
		PositionSide:     side,
		PositionAmt:      remainder,
		EntryPrice:       price,
		Margin:           newMargin,
		LiquidationPrice: LiquidationPrice(price, side, o.FeePerc, lev.Leverage),
		Leverage:         lev.Leverage,
		Profit:           newFee.Neg(),
		Fee:              newFee,
		Status:           types.PositionStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.positions.Insert(ctx, next); err != nil {
		return err
	}
	if err := s.wallets.Apply(ctx, o.UserID, asset, newMargin.Add(newFee).Neg(), newMargin); err != nil {
		return err
	}
	if err := s.setLeverageLocked(ctx, o.UserID, o.Symbol, o.Exchange, levSide, true); err != nil {
		return err
	}
	s.proj.PutPosition(next)
	if err := s.watch.Add(ctx, watch.Key(o.Symbol, o.Exchange), next.UUID); err != nil {
		s.log.Warn("watch add failed", zap.String("uuid", next.UUID), zap.Error(err))
	}
	// The whole order amount filled: the closing leg and the new leg.
	s.fillOrder(o, price, fee)
	s.events.Position(o.UserID, next)
	s.publishBalance(ctx, o.UserID)
	return nil
}

func (s *Service) reducePosition(ctx context.Context, o *model.Order, pos model.Position, price decimal.Decimal, asset string, inverse bool, cs decimal.Decimal, fee decimal.Decimal) error {
	return s.locks.WithLock(locks.PositionKey(pos.UUID), func() error {
		current, ok := s.proj.GetPosition(pos.Symbol, pos.UUID)
		if !ok {
			return nil
		}
		pos = current
		m := Margin(o.Amount, price, pos.Leverage, inverse, cs)
		pnl := RealizedPnL(o.Amount, pos.EntryPrice, price, pos.PositionSide, inverse, cs, fee)
		pos.PositionAmt = pos.PositionAmt.Sub(o.Amount)
		pos.Margin = pos.Margin.Sub(m)
		pos.Profit = pos.Profit.Add(pnl)
		pos.Fee = pos.Fee.Add(fee)
		pos.UpdatedAt = time.Now().UTC()
		if err := s.positions.Update(ctx, pos); err != nil {
			return err
		}
		if err := s.wallets.Apply(ctx, pos.UserID, asset, m.Add(pnl), m.Neg()); err != nil {
			return err
		}
		s.proj.PutPosition(pos)
		s.fillOrder(o, price, fee)
		s.events.Position(pos.UserID, pos)
		s.publishBalance(ctx, pos.UserID)
		return nil
	})
}

func (s *Service) fillOrder(o *model.Order, price, fee decimal.Decimal) {
	o.FilledAmount = o.Amount
	o.FilledQuoteAmount = o.Amount.Mul(price)
	o.AvgFilledPrice = price
	o.Fee = fee
	o.Status = types.OrderStatusFilled
}

func (s *Service) setLeverageLocked(ctx context.Context, userID, symbol string, exchange types.Exchange, side types.PositionSide, locked bool) error {
	return s.locks.WithLock(locks.LeverageKey(userID, symbol), func() error {
		lev, err := s.leverages.Ensure(ctx, userID, symbol, exchange, side)
		if err != nil {
			return err
		}
		lev.Locked = locked
		return s.leverages.Update(ctx, lev)
	})
}

func (s *Service) publishBalance(ctx context.Context, userID string) {
	rows, err := s.wallets.ListByUser(ctx, userID)
	if err != nil {
		s.log.Warn("balance snapshot failed", zap.String("user", userID), zap.Error(err))
		return
	}
	s.events.Balance(userID, rows)
}

// leverageSide keys the leverage row: the position side in hedge mode,
// BOTH in one-way mode.
func leverageSide(side types.PositionSide, hedge bool) types.PositionSide {
	if hedge {
		return side
	}
	return types.PositionSideBoth
}
