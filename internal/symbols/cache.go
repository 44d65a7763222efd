package symbols

import (
	"context"
	"errors"
	"sync"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/store"
	"papertrade/internal/types"

	"go.uber.org/zap"
)

const cacheTTL = 3 * time.Hour

var ErrSymbolNotFound = errors.New("symbol not found")

// Cache keeps per-symbol parameters, reloaded when missing or older than
// the TTL. A reload reads the symbols store; the external symbol service
// is called only when the store has no row for the symbol, so a stored
// row is never re-fetched from that service. Callers get a snapshot and
// must not hold it across suspension points beyond one request.
type Cache struct {
	client  *Client
	symbols store.Symbols
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	symbol    model.Symbol
	fetchedAt time.Time
}

func NewCache(client *Client, symbols store.Symbols, log *zap.Logger) *Cache {
	return &Cache{
		client:  client,
		symbols: symbols,
		log:     log.Named("symbolcache"),
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, pair string, exchange types.Exchange) (model.Symbol, error) {
	k := pair + "@" + string(exchange)
	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetchedAt) < cacheTTL {
		return e.symbol, nil
	}

	sym, err := c.refresh(ctx, pair, exchange)
	if err == nil {
		c.mu.Lock()
		c.entries[k] = cacheEntry{symbol: sym, fetchedAt: c.now()}
		c.mu.Unlock()
		return sym, nil
	}
	if ok {
		// Keep serving the stale entry while the service is down.
		c.log.Warn("symbol refresh failed, serving stale entry", zap.String("symbol", k), zap.Error(err))
		return e.symbol, nil
	}
	return model.Symbol{}, err
}

func (c *Cache) refresh(ctx context.Context, pair string, exchange types.Exchange) (model.Symbol, error) {
	sym, err := c.symbols.Get(ctx, pair, exchange)
	if err == nil {
		return sym, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Symbol{}, err
	}
	if c.client == nil {
		return model.Symbol{}, ErrSymbolNotFound
	}
	sym, err = c.client.Symbol(ctx, pair, exchange)
	if err != nil {
		return model.Symbol{}, ErrSymbolNotFound
	}
	if err := c.symbols.Upsert(ctx, sym); err != nil {
		c.log.Warn("persisting symbol failed", zap.String("pair", pair), zap.Error(err))
	}
	return sym, nil
}
