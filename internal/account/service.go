package account

import (
	"context"
	"errors"

	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/store"
	"papertrade/internal/types"
)

var (
	ErrLeverageLocked  = errors.New("leverage is locked while a position is open")
	ErrLeverageRange   = errors.New("leverage must be between 1 and 125")
	ErrHedgeInUse      = errors.New("hedge mode cannot change with open positions or orders")
	ErrUnknownExchange = errors.New("unknown exchange")
)

// Service covers the user-facing account surface: leverage, hedge mode,
// balances and positions.
type Service struct {
	wallets store.Wallets
	levs    store.Leverages
	hedges  store.Hedges
	proj    *projection.Projection
}

func NewService(wallets store.Wallets, levs store.Leverages, hedges store.Hedges, proj *projection.Projection) *Service {
	return &Service{wallets: wallets, levs: levs, hedges: hedges, proj: proj}
}

func (s *Service) SetLeverage(ctx context.Context, userID, symbol string, exchange types.Exchange, side types.PositionSide, leverage int) (model.Leverage, error) {
	if !exchange.Futures() {
		return model.Leverage{}, ErrUnknownExchange
	}
	if leverage < 1 || leverage > 125 {
		return model.Leverage{}, ErrLeverageRange
	}
	if side != types.PositionSideLong && side != types.PositionSideShort {
		side = types.PositionSideBoth
	}
	row, err := s.levs.Ensure(ctx, userID, symbol, exchange, side)
	if err != nil {
		return model.Leverage{}, err
	}
	if row.Locked {
		return model.Leverage{}, ErrLeverageLocked
	}
	row.Leverage = leverage
	if err := s.levs.Update(ctx, row); err != nil {
		return model.Leverage{}, err
	}
	return row, nil
}

func (s *Service) SetHedge(ctx context.Context, userID string, hedge bool) error {
	if len(s.proj.PositionsByUser(userID)) > 0 {
		return ErrHedgeInUse
	}
	for _, o := range s.proj.OrdersByUser(userID) {
		if o.Exchange.Futures() {
			return ErrHedgeInUse
		}
	}
	return s.hedges.Set(ctx, userID, hedge)
}

func (s *Service) Balances(ctx context.Context, userID string) ([]model.WalletBalance, error) {
	return s.wallets.ListByUser(ctx, userID)
}

func (s *Service) Positions(userID string) []model.Position {
	return s.proj.PositionsByUser(userID)
}
