package orders

import (
	"context"
	"errors"

	"papertrade/internal/model"
	"papertrade/internal/store"
)

func (s *Service) GetOrder(ctx context.Context, userID, externalID, symbol string) (model.Order, error) {
	o, err := s.orders.GetByExternalID(ctx, externalID, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, err
	}
	if o.UserID != userID {
		return model.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) GetOrderByID(ctx context.Context, userID, id string) (model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, err
	}
	if o.UserID != userID {
		return model.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListOpenOrders(ctx context.Context, userID string) ([]model.Order, error) {
	return s.orders.ListOpenByUser(ctx, userID)
}
