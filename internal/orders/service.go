package orders

import (
	"context"
	"errors"
	"time"

	"papertrade/internal/locks"
	"papertrade/internal/marketdata"
	"papertrade/internal/model"
	"papertrade/internal/projection"
	"papertrade/internal/settlement"
	"papertrade/internal/store"
	"papertrade/internal/symbols"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUserNotFound        = errors.New("User not found")
	ErrSymbolNotFound      = errors.New("Symbol not found")
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrReduceRejected      = errors.New("Reduce order rejected")
	ErrHedgeMode           = errors.New("positionSide must be LONG or SHORT in hedge mode")
	ErrOrderNotFound       = errors.New("Order not found")
	ErrOrderTerminal       = errors.New("Order already in terminal state")
	ErrDuplicateOrder      = errors.New("Duplicated externalId + symbol")
	ErrTooManyOrders       = errors.New("Too many open orders for symbol")
	ErrBadRequest          = errors.New("Bad request")
)

// Resolver authenticates an api key/secret pair to a user.
type Resolver interface {
	Resolve(ctx context.Context, apiKey, apiSecret string) (model.User, error)
}

// Events is the per-user execution-report push.
type Events interface {
	Order(userID string, o model.Order)
}

// Service is the order lifecycle: create, cancel, expire, and the
// limit-order fill path driven by the matching engine.
type Service struct {
	auth      Resolver
	symbols   *symbols.Cache
	prices    *marketdata.PriceCache
	orders    store.Orders
	positions store.Positions
	wallets   store.Wallets
	levs      store.Leverages
	hedges    store.Hedges
	settle    *settlement.Service
	proj      *projection.Projection
	watch     *watch.Controller
	locks     *locks.Manager
	events    Events
	log       *zap.Logger
}

func NewService(auth Resolver, sc *symbols.Cache, prices *marketdata.PriceCache, orders store.Orders, positions store.Positions, wallets store.Wallets, levs store.Leverages, hedges store.Hedges, settle *settlement.Service, proj *projection.Projection, wc *watch.Controller, lm *locks.Manager, events Events, log *zap.Logger) *Service {
	return &Service{
		auth:      auth,
		symbols:   sc,
		prices:    prices,
		orders:    orders,
		positions: positions,
		wallets:   wallets,
		levs:      levs,
		hedges:    hedges,
		settle:    settle,
		proj:      proj,
		watch:     wc,
		locks:     lm,
		events:    events,
		log:       log.Named("orders"),
	}
}

type CreateOrderRequest struct {
	APIKey       string
	APISecret    string
	Symbol       string
	Exchange     types.Exchange
	Side         types.OrderSide
	Type         types.OrderType
	Price        decimal.Decimal
	Amount       decimal.Decimal
	ExternalID   string
	ReduceOnly   bool
	PositionSide types.PositionSide
}

// CreateOrder validates, books and (for market orders) settles a new
// order. All invocations with the same (key, secret, symbol, exchange)
// are serialized.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	var out model.Order
	err := s.locks.WithLock(locks.CreateOrderKey(req.APIKey, req.APISecret, req.Symbol, string(req.Exchange)), func() error {
		var err error
		out, err = s.createOrder(ctx, req)
		return err
	})
	return out, err
}

func (s *Service) createOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	if req.Symbol == "" || !req.Exchange.Known() {
		return model.Order{}, ErrBadRequest
	}
	if req.Side != types.OrderSideBuy && req.Side != types.OrderSideSell {
		return model.Order{}, ErrBadRequest
	}
	if req.Type != types.OrderTypeLimit && req.Type != types.OrderTypeMarket {
		return model.Order{}, ErrBadRequest
	}
	if !req.Amount.IsPositive() {
		return model.Order{}, ErrBadRequest
	}
	if req.Type == types.OrderTypeLimit && !req.Price.IsPositive() {
		return model.Order{}, ErrBadRequest
	}

	user, err := s.auth.Resolve(ctx, req.APIKey, req.APISecret)
	if err != nil {
		return model.Order{}, ErrUserNotFound
	}

	sym, err := s.symbols.Get(ctx, req.Symbol, req.Exchange)
	if err != nil {
		return model.Order{}, ErrSymbolNotFound
	}

	futures := req.Exchange.Futures()
	hedge := false
	leverage := 1
	positionSide := types.PositionSideBoth
	if futures {
		hedge, err = s.hedges.Get(ctx, user.ID)
		if err != nil {
			return model.Order{}, err
		}
		if hedge {
			if req.PositionSide != types.PositionSideLong && req.PositionSide != types.PositionSideShort {
				return model.Order{}, ErrHedgeMode
			}
			positionSide = req.PositionSide
		}
		lev, err := s.levs.Ensure(ctx, user.ID, req.Symbol, req.Exchange, positionSide)
		if err != nil {
			return model.Order{}, err
		}
		leverage = lev.Leverage
	}

	current, err := s.prices.Current(ctx, req.Symbol, req.Exchange)
	if err != nil {
		return model.Order{}, err
	}

	// Marketable limits cross the quote at submission and execute as
	// market orders at the current price.
	effType := req.Type
	if effType == types.OrderTypeLimit {
		if (req.Side == types.OrderSideBuy && req.Price.GreaterThan(current)) ||
			(req.Side == types.OrderSideSell && req.Price.LessThan(current)) {
			effType = types.OrderTypeMarket
		}
	}
	usedPrice := req.Price
	if effType == types.OrderTypeMarket {
		usedPrice = current
	}

	if err := s.checkBalance(ctx, req, user.ID, sym, usedPrice, futures, hedge, leverage, positionSide); err != nil {
		return model.Order{}, err
	}

	role := types.FeeRoleMaker
	if effType == types.OrderTypeMarket {
		role = types.FeeRoleTaker
	}
	if effType == types.OrderTypeLimit && sym.MaxOrders > 0 {
		open := 0
		for _, live := range s.proj.OrdersBySymbol(req.Symbol, string(req.Exchange)) {
			if live.UserID == user.ID {
				open++
			}
		}
		if open >= sym.MaxOrders {
			return model.Order{}, ErrTooManyOrders
		}
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}
	now := time.Now().UTC()
	o := model.Order{
		ExternalID:   externalID,
		UserID:       user.ID,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Side:         req.Side,
		Type:         effType,
		Price:        usedPrice,
		Amount:       req.Amount,
		QuoteAmount:  req.Amount.Mul(usedPrice),
		FeePerc:      types.FeeRate(req.Exchange, role),
		Status:       types.OrderStatusNew,
		ReduceOnly:   req.ReduceOnly,
		PositionSide: positionSide,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o, err = s.orders.Insert(ctx, o)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.Order{}, ErrDuplicateOrder
		}
		return model.Order{}, err
	}

	if effType == types.OrderTypeMarket {
		if futures {
			err = s.settle.Futures(ctx, &o, sym, current, hedge)
		} else {
			err = s.settle.SpotMarket(ctx, &o, sym, current)
		}
		if err != nil {
			return model.Order{}, err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return model.Order{}, err
		}
		s.events.Order(o.UserID, o)
		return o, nil
	}

	// Resting limit: reserve, index, watch.
	if !futures {
		if err := s.settle.ReserveSpot(ctx, o, sym); err != nil {
			return model.Order{}, err
		}
	}
	s.proj.PutOrder(o)
	if err := s.watch.Add(ctx, watch.Key(o.Symbol, o.Exchange), o.ExternalID); err != nil {
		s.log.Warn("watch add failed", zap.String("externalId", o.ExternalID), zap.Error(err))
	}
	s.events.Order(o.UserID, o)
	return o, nil
}

func (s *Service) checkBalance(ctx context.Context, req CreateOrderRequest, userID string, sym model.Symbol, usedPrice decimal.Decimal, futures, hedge bool, leverage int, positionSide types.PositionSide) error {
	if !futures {
		if req.Side == types.OrderSideBuy {
			quote, err := s.wallets.Get(ctx, userID, sym.QuoteAsset.Name)
			if err != nil {
				return err
			}
			if quote.Free.LessThan(req.Amount.Mul(usedPrice)) {
				return ErrInsufficientBalance
			}
			return nil
		}
		base, err := s.wallets.Get(ctx, userID, sym.BaseAsset.Name)
		if err != nil {
			return err
		}
		if base.Free.LessThan(req.Amount) {
			return ErrInsufficientBalance
		}
		return nil
	}

	inverse := req.Exchange.Inverse()
	asset := sym.QuoteAsset.Name
	if inverse {
		asset = sym.BaseAsset.Name
	}
	bal, err := s.wallets.Get(ctx, userID, asset)
	if err != nil {
		return err
	}

	var pos model.Position
	var found bool
	if hedge {
		pos, found = s.proj.FindPosition(userID, req.Symbol, string(req.Exchange), string(positionSide))
	} else {
		pos, found = s.proj.FindAnyPosition(userID, req.Symbol, string(req.Exchange))
	}

	sameDir := found && pos.PositionSide == openSideFor(req.Side)
	if !found || sameDir {
		if req.ReduceOnly {
			// Nothing on the opposite side to decrease.
			return ErrReduceRejected
		}
		need := settlement.Margin(req.Amount, usedPrice, leverage, inverse, sym.ContractSize())
		if bal.Free.LessThan(need) {
			return ErrInsufficientBalance
		}
		return nil
	}
	if req.ReduceOnly {
		return nil
	}
	if req.Amount.GreaterThan(pos.PositionAmt) {
		need := settlement.Margin(req.Amount.Sub(pos.PositionAmt), usedPrice, leverage, inverse, sym.ContractSize())
		if bal.Free.LessThan(need) {
			return ErrInsufficientBalance
		}
	}
	return nil
}

func openSideFor(side types.OrderSide) types.PositionSide {
	if side == types.OrderSideBuy {
		return types.PositionSideLong
	}
	return types.PositionSideShort
}
