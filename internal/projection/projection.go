package projection

import (
	"sync"

	"papertrade/internal/model"
)

// Projection is the process-local index of live limit orders and open
// positions, keyed the way the matching engine scans them. Durable truth
// stays in storage; this map is rebuilt at startup by reconciliation.
type Projection struct {
	mu        sync.RWMutex
	orders    map[string]map[string]model.Order    // symbol -> externalId -> order
	positions map[string]map[string]model.Position // symbol -> uuid -> position
}

func New() *Projection {
	return &Projection{
		orders:    make(map[string]map[string]model.Order),
		positions: make(map[string]map[string]model.Position),
	}
}

func (p *Projection) GetOrder(symbol, externalID string) (model.Order, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[symbol][externalID]
	return o, ok
}

func (p *Projection) GetOrderByID(id string) (model.Order, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, bySymbol := range p.orders {
		for _, o := range bySymbol {
			if o.ID == id {
				return o, true
			}
		}
	}
	return model.Order{}, false
}

func (p *Projection) PutOrder(o model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bySymbol, ok := p.orders[o.Symbol]
	if !ok {
		bySymbol = make(map[string]model.Order)
		p.orders[o.Symbol] = bySymbol
	}
	bySymbol[o.ExternalID] = o
}

func (p *Projection) RemoveOrder(symbol, externalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bySymbol, ok := p.orders[symbol]
	if !ok {
		return
	}
	delete(bySymbol, externalID)
	if len(bySymbol) == 0 {
		delete(p.orders, symbol)
	}
}

// OrdersBySymbol returns copies of all live orders on (symbol, exchange).
func (p *Projection) OrdersBySymbol(symbol string, exchange string) []model.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.Order
	for _, o := range p.orders[symbol] {
		if string(o.Exchange) == exchange {
			out = append(out, o)
		}
	}
	return out
}

func (p *Projection) OrdersByUser(userID string) []model.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.Order
	for _, bySymbol := range p.orders {
		for _, o := range bySymbol {
			if o.UserID == userID {
				out = append(out, o)
			}
		}
	}
	return out
}

func (p *Projection) GetPosition(symbol, uuid string) (model.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[symbol][uuid]
	return pos, ok
}

func (p *Projection) PutPosition(pos model.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bySymbol, ok := p.positions[pos.Symbol]
	if !ok {
		bySymbol = make(map[string]model.Position)
		p.positions[pos.Symbol] = bySymbol
	}
	bySymbol[pos.UUID] = pos
}

func (p *Projection) RemovePosition(symbol, uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bySymbol, ok := p.positions[symbol]
	if !ok {
		return
	}
	delete(bySymbol, uuid)
	if len(bySymbol) == 0 {
		delete(p.positions, symbol)
	}
}

func (p *Projection) PositionsBySymbol(symbol string, exchange string) []model.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.Position
	for _, pos := range p.positions[symbol] {
		if string(pos.Exchange) == exchange {
			out = append(out, pos)
		}
	}
	return out
}

func (p *Projection) PositionsByUser(userID string) []model.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.Position
	for _, bySymbol := range p.positions {
		for _, pos := range bySymbol {
			if pos.UserID == userID {
				out = append(out, pos)
			}
		}
	}
	return out
}

// FindAnyPosition locates the user's open position on (symbol,
// exchange) regardless of side; one-way mode has at most one.
func (p *Projection) FindAnyPosition(userID, symbol string, exchange string) (model.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pos := range p.positions[symbol] {
		if pos.UserID == userID && string(pos.Exchange) == exchange {
			return pos, true
		}
	}
	return model.Position{}, false
}

// FindPosition locates the user's open position on (symbol, exchange)
// with the given side.
func (p *Projection) FindPosition(userID, symbol string, exchange string, side string) (model.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pos := range p.positions[symbol] {
		if pos.UserID == userID && string(pos.Exchange) == exchange && string(pos.PositionSide) == side {
			return pos, true
		}
	}
	return model.Position{}, false
}
