// Package storetest carries in-memory store implementations used by the
// engine and service tests.
package storetest

import (
	"context"
	"strconv"
	"sync"

	"papertrade/internal/model"
	"papertrade/internal/store"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type Orders struct {
	mu    sync.Mutex
	seq   int
	byID  map[string]model.Order
	byKey map[string]string // externalId|symbol -> id
}

func NewOrders() *Orders {
	return &Orders{byID: make(map[string]model.Order), byKey: make(map[string]string)}
}

func key(externalID, symbol string) string { return externalID + "|" + symbol }

func (s *Orders) Insert(_ context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byKey[key(o.ExternalID, o.Symbol)]; dup {
		return o, store.ErrDuplicate
	}
	s.seq++
	o.ID = "ord-" + strconv.Itoa(s.seq)
	s.byID[o.ID] = o
	s.byKey[key(o.ExternalID, o.Symbol)] = o.ID
	return o, nil
}

func (s *Orders) Update(_ context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; !ok {
		return store.ErrNotFound
	}
	s.byID[o.ID] = o
	return nil
}

func (s *Orders) GetByExternalID(_ context.Context, externalID, symbol string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key(externalID, symbol)]
	if !ok {
		return model.Order{}, store.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *Orders) GetByID(_ context.Context, id string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return model.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Orders) ListOpenLimit(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.byID {
		if o.Type == types.OrderTypeLimit && o.Live() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Orders) ListOpenByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.byID {
		if o.UserID == userID && o.Live() {
			out = append(out, o)
		}
	}
	return out, nil
}

type Positions struct {
	mu   sync.Mutex
	byID map[string]model.Position
}

func NewPositions() *Positions {
	return &Positions{byID: make(map[string]model.Position)}
}

func (s *Positions) Insert(_ context.Context, p model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.UUID] = p
	return nil
}

func (s *Positions) Update(_ context.Context, p model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.UUID]; !ok {
		return store.ErrNotFound
	}
	s.byID[p.UUID] = p
	return nil
}

func (s *Positions) Get(_ context.Context, uuid string) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[uuid]
	if !ok {
		return model.Position{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Positions) ListOpen(_ context.Context) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Position
	for _, p := range s.byID {
		if p.Open() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Positions) ListOpenByUser(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Position
	for _, p := range s.byID {
		if p.UserID == userID && p.Open() {
			out = append(out, p)
		}
	}
	return out, nil
}

type Wallets struct {
	mu   sync.Mutex
	rows map[string]model.WalletBalance
}

func NewWallets() *Wallets {
	return &Wallets{rows: make(map[string]model.WalletBalance)}
}

func (s *Wallets) Get(_ context.Context, userID, asset string) (model.WalletBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "|" + asset
	b, ok := s.rows[k]
	if !ok {
		b = model.WalletBalance{UserID: userID, Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}
		s.rows[k] = b
	}
	return b, nil
}

func (s *Wallets) Apply(_ context.Context, userID, asset string, freeDelta, lockedDelta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + "|" + asset
	b, ok := s.rows[k]
	if !ok {
		b = model.WalletBalance{UserID: userID, Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}
	}
	b.Free = b.Free.Add(freeDelta)
	b.Locked = b.Locked.Add(lockedDelta)
	s.rows[k] = b
	return nil
}

func (s *Wallets) Set(_ context.Context, b model.WalletBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.UserID+"|"+b.Asset] = b
	return nil
}

func (s *Wallets) ListByUser(_ context.Context, userID string) ([]model.WalletBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletBalance
	for _, b := range s.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Wallets) ListLocked(_ context.Context) ([]model.WalletBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletBalance
	for _, b := range s.rows {
		if !b.Locked.IsZero() {
			out = append(out, b)
		}
	}
	return out, nil
}

type Leverages struct {
	mu   sync.Mutex
	rows map[string]model.Leverage
}

func NewLeverages() *Leverages {
	return &Leverages{rows: make(map[string]model.Leverage)}
}

func levKey(userID, symbol string, side types.PositionSide) string {
	return userID + "|" + symbol + "|" + string(side)
}

func (s *Leverages) Get(_ context.Context, userID, symbol string, side types.PositionSide) (model.Leverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[levKey(userID, symbol, side)]
	if !ok {
		return model.Leverage{}, store.ErrNotFound
	}
	return l, nil
}

func (s *Leverages) Ensure(_ context.Context, userID, symbol string, exchange types.Exchange, side types.PositionSide) (model.Leverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := levKey(userID, symbol, side)
	l, ok := s.rows[k]
	if !ok {
		l = model.Leverage{UserID: userID, Symbol: symbol, Exchange: exchange, Side: side, Leverage: 1}
		s.rows[k] = l
	}
	return l, nil
}

func (s *Leverages) Update(_ context.Context, l model.Leverage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[levKey(l.UserID, l.Symbol, l.Side)] = l
	return nil
}

func (s *Leverages) ListLocked(_ context.Context) ([]model.Leverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Leverage
	for _, l := range s.rows {
		if l.Locked {
			out = append(out, l)
		}
	}
	return out, nil
}

type Hedges struct {
	mu   sync.Mutex
	rows map[string]bool
}

func NewHedges() *Hedges {
	return &Hedges{rows: make(map[string]bool)}
}

func (s *Hedges) Get(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[userID], nil
}

func (s *Hedges) Set(_ context.Context, userID string, hedge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = hedge
	return nil
}

type Users struct {
	mu   sync.Mutex
	rows map[string]model.User
}

func NewUsers() *Users {
	return &Users{rows: make(map[string]model.User)}
}

func (s *Users) Put(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[u.APIKey] = u
}

func (s *Users) GetByAPIKey(_ context.Context, apiKey string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[apiKey]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Users) GetByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, store.ErrNotFound
}

type Symbols struct {
	mu   sync.Mutex
	rows map[string]model.Symbol
}

func NewSymbols() *Symbols {
	return &Symbols{rows: make(map[string]model.Symbol)}
}

func (s *Symbols) Get(_ context.Context, pair string, exchange types.Exchange) (model.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, ok := s.rows[pair+"|"+string(exchange)]
	if !ok {
		return model.Symbol{}, store.ErrNotFound
	}
	return sym, nil
}

func (s *Symbols) Upsert(_ context.Context, sym model.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sym.Pair+"|"+string(sym.Exchange)] = sym
	return nil
}
