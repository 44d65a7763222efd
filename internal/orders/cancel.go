package orders

import (
	"context"
	"errors"

	"papertrade/internal/locks"
	"papertrade/internal/model"
	"papertrade/internal/store"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"go.uber.org/zap"
)

type CancelOrderRequest struct {
	APIKey     string
	APISecret  string
	ExternalID string
	Symbol     string
	OrderID    string
	Expire     bool
}

// CancelOrder transitions a live order to CANCELED (or EXPIRED) and
// releases any remaining spot reservation. Serialized per externalId.
func (s *Service) CancelOrder(ctx context.Context, req CancelOrderRequest) (model.Order, error) {
	user, err := s.auth.Resolve(ctx, req.APIKey, req.APISecret)
	if err != nil {
		return model.Order{}, ErrUserNotFound
	}

	var o model.Order
	if req.OrderID != "" {
		o, err = s.orders.GetByID(ctx, req.OrderID)
	} else {
		o, err = s.orders.GetByExternalID(ctx, req.ExternalID, req.Symbol)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, err
	}
	if o.UserID != user.ID {
		return model.Order{}, ErrOrderNotFound
	}

	status := types.OrderStatusCanceled
	if req.Expire {
		status = types.OrderStatusExpired
	}
	var out model.Order
	err = s.locks.WithLock(locks.UpdateOrderKey(o.ExternalID), func() error {
		var err error
		out, err = s.cancelLocked(ctx, o.Symbol, o.ExternalID, status)
		return err
	})
	return out, err
}

// cancelLocked finishes a live order under the UpdateOrder lock; the
// projection copy is authoritative for the unfilled remainder.
func (s *Service) cancelLocked(ctx context.Context, symbol, externalID string, status types.OrderStatus) (model.Order, error) {
	o, ok := s.proj.GetOrder(symbol, externalID)
	if !ok {
		// Not live: either already terminal or a market order.
		stored, err := s.orders.GetByExternalID(ctx, externalID, symbol)
		if err != nil {
			return model.Order{}, ErrOrderNotFound
		}
		if stored.Status.Terminal() {
			return model.Order{}, ErrOrderTerminal
		}
		o = stored
	}
	if o.Status.Terminal() {
		return model.Order{}, ErrOrderTerminal
	}

	if !o.Exchange.Futures() {
		sym, err := s.symbols.Get(ctx, o.Symbol, o.Exchange)
		if err != nil {
			return model.Order{}, err
		}
		if err := s.settle.ReleaseSpotReservation(ctx, o, sym); err != nil {
			return model.Order{}, err
		}
	}

	o.Status = status
	if err := s.orders.Update(ctx, o); err != nil {
		return model.Order{}, err
	}
	s.proj.RemoveOrder(o.Symbol, o.ExternalID)
	if err := s.watch.Remove(ctx, watch.Key(o.Symbol, o.Exchange), o.ExternalID); err != nil {
		s.log.Warn("watch remove failed", zap.String("externalId", o.ExternalID), zap.Error(err))
	}
	s.events.Order(o.UserID, o)
	return o, nil
}

// ExpireReduceOnly expires every live reduce-only order the user has on
// a symbol; the liquidation path runs it before the synthetic close.
func (s *Service) ExpireReduceOnly(ctx context.Context, userID, symbol string, exchange types.Exchange) {
	for _, o := range s.proj.OrdersBySymbol(symbol, string(exchange)) {
		if o.UserID != userID || !o.ReduceOnly {
			continue
		}
		externalID := o.ExternalID
		err := s.locks.WithLock(locks.UpdateOrderKey(externalID), func() error {
			_, err := s.cancelLocked(ctx, symbol, externalID, types.OrderStatusExpired)
			return err
		})
		if err != nil && !errors.Is(err, ErrOrderTerminal) && !errors.Is(err, ErrOrderNotFound) {
			s.log.Warn("expiring reduce-only order failed", zap.String("externalId", externalID), zap.Error(err))
		}
	}
}
