package recon

import (
	"context"

	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/store"
	"papertrade/internal/symbols"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service rebuilds the projection from storage at startup and repairs
// locked-balance drift before the first tick batch is processed.
type Service struct {
	orders    store.Orders
	positions store.Positions
	wallets   store.Wallets
	leverages store.Leverages
	hedges    store.Hedges
	symbols   *symbols.Cache
	proj      *projection.Projection
	watch     *watch.Controller
	log       *zap.Logger
}

func NewService(orders store.Orders, positions store.Positions, wallets store.Wallets, leverages store.Leverages, hedges store.Hedges, sc *symbols.Cache, proj *projection.Projection, wc *watch.Controller, log *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		positions: positions,
		wallets:   wallets,
		leverages: leverages,
		hedges:    hedges,
		symbols:   sc,
		proj:      proj,
		watch:     wc,
		log:       log.Named("recon"),
	}
}

func (s *Service) Run(ctx context.Context) error {
	orders, positions, err := s.rebuild(ctx)
	if err != nil {
		return err
	}
	if err := s.repairLocked(ctx, orders, positions); err != nil {
		return err
	}
	if err := s.backfillLeverage(ctx, positions); err != nil {
		return err
	}
	s.log.Info("reconciliation complete",
		zap.Int("openOrders", len(orders)),
		zap.Int("openPositions", len(positions)))
	return nil
}

func (s *Service) rebuild(ctx context.Context) ([]model.Order, []model.Position, error) {
	orders, err := s.orders.ListOpenLimit(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, o := range orders {
		s.proj.PutOrder(o)
		if err := s.watch.Add(ctx, watch.Key(o.Symbol, o.Exchange), o.ExternalID); err != nil {
			s.log.Warn("watch add failed", zap.String("externalId", o.ExternalID), zap.Error(err))
		}
	}
	positions, err := s.positions.ListOpen(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range positions {
		s.proj.PutPosition(p)
		if err := s.watch.Add(ctx, watch.Key(p.Symbol, p.Exchange), p.UUID); err != nil {
			s.log.Warn("watch add failed", zap.String("uuid", p.UUID), zap.Error(err))
		}
	}
	return orders, positions, nil
}

// repairLocked recomputes what each wallet's locked column should hold
// from the open set and moves the difference between free and locked.
func (s *Service) repairLocked(ctx context.Context, orders []model.Order, positions []model.Position) error {
	type key struct{ user, asset string }
	expected := make(map[key]decimal.Decimal)

	for _, o := range orders {
		if o.Exchange.Futures() {
			continue
		}
		sym, err := s.symbols.Get(ctx, o.Symbol, o.Exchange)
		if err != nil {
			s.log.Warn("symbol lookup failed during reconciliation", zap.String("symbol", o.Symbol), zap.Error(err))
			continue
		}
		if o.Side == types.OrderSideBuy {
			k := key{o.UserID, sym.QuoteAsset.Name}
			expected[k] = expected[k].Add(o.QuoteAmount.Sub(o.FilledQuoteAmount))
		} else {
			k := key{o.UserID, sym.BaseAsset.Name}
			expected[k] = expected[k].Add(o.Remaining())
		}
	}
	for _, p := range positions {
		sym, err := s.symbols.Get(ctx, p.Symbol, p.Exchange)
		if err != nil {
			s.log.Warn("symbol lookup failed during reconciliation", zap.String("symbol", p.Symbol), zap.Error(err))
			continue
		}
		asset := sym.QuoteAsset.Name
		if p.Exchange.Inverse() {
			asset = sym.BaseAsset.Name
		}
		k := key{p.UserID, asset}
		expected[k] = expected[k].Add(p.Margin)
	}

	lockedRows, err := s.wallets.ListLocked(ctx)
	if err != nil {
		return err
	}
	seen := make(map[key]bool)
	for _, row := range lockedRows {
		k := key{row.UserID, row.Asset}
		seen[k] = true
		want := expected[k]
		if row.Locked.Equal(want) {
			continue
		}
		if want.IsZero() {
			// Orphaned lock: no order or position backs it.
			s.log.Warn("resetting orphaned locked balance",
				zap.String("user", row.UserID),
				zap.String("asset", row.Asset),
				zap.String("locked", row.Locked.String()))
			row.Free = row.Free.Add(decimal.Max(row.Locked, decimal.Zero))
			row.Locked = decimal.Zero
			if err := s.wallets.Set(ctx, row); err != nil {
				return err
			}
			continue
		}
		diff := want.Sub(row.Locked)
		s.log.Warn("correcting locked balance drift",
			zap.String("user", row.UserID),
			zap.String("asset", row.Asset),
			zap.String("diff", diff.String()))
		if err := s.wallets.Apply(ctx, row.UserID, row.Asset, diff.Neg(), diff); err != nil {
			return err
		}
	}
	// Wallets with nothing locked but an open reservation expected.
	for k, want := range expected {
		if seen[k] || want.IsZero() {
			continue
		}
		s.log.Warn("correcting locked balance drift",
			zap.String("user", k.user),
			zap.String("asset", k.asset),
			zap.String("diff", want.String()))
		if err := s.wallets.Apply(ctx, k.user, k.asset, want.Neg(), want); err != nil {
			return err
		}
	}
	return nil
}

// backfillLeverage assigns a side to locked leverage rows that predate
// side-scoped leverage records.
func (s *Service) backfillLeverage(ctx context.Context, positions []model.Position) error {
	rows, err := s.leverages.ListLocked(ctx)
	if err != nil {
		return err
	}
	bySymbol := make(map[string][]model.Position)
	for _, p := range positions {
		bySymbol[p.UserID+"|"+p.Symbol] = append(bySymbol[p.UserID+"|"+p.Symbol], p)
	}
	for _, row := range rows {
		if row.Side != "" {
			continue
		}
		open := bySymbol[row.UserID+"|"+row.Symbol]
		hedge, err := s.hedges.Get(ctx, row.UserID)
		if err != nil {
			return err
		}
		switch {
		case hedge && len(open) == 2:
			for _, side := range []types.PositionSide{types.PositionSideLong, types.PositionSideShort} {
				split := row
				split.Side = side
				if err := s.leverages.Update(ctx, split); err != nil {
					return err
				}
			}
		case len(open) == 1:
			row.Side = open[0].PositionSide
			if err := s.leverages.Update(ctx, row); err != nil {
				return err
			}
		default:
			row.Side = types.PositionSideBoth
			if err := s.leverages.Update(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}
