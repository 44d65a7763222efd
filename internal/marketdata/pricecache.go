package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"papertrade/internal/symbols"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	allPriceKey = "allPrice"
	allPriceTTL = 60 * time.Second
)

var ErrNoPrice = errors.New("no current price")

type allPriceEntry struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// PriceCache resolves the current price of a symbol: the in-process map
// fed by surviving ticks first, then the shared redis allPrice hash,
// then the market-data service.
type PriceCache struct {
	rdb    *redis.Client
	client *symbols.Client
	log    *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	prices map[string]pricePoint
}

type pricePoint struct {
	price decimal.Decimal
	at    time.Time
}

func NewPriceCache(rdb *redis.Client, client *symbols.Client, log *zap.Logger) *PriceCache {
	return &PriceCache{
		rdb:    rdb,
		client: client,
		log:    log.Named("pricecache"),
		now:    time.Now,
		prices: make(map[string]pricePoint),
	}
}

func (c *PriceCache) Set(symbol string, exchange types.Exchange, price decimal.Decimal) {
	c.mu.Lock()
	c.prices[watch.Key(symbol, exchange)] = pricePoint{price: price, at: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the cached price for a symbol, used when a stale tick
// shows the feed is behind.
func (c *PriceCache) Invalidate(symbol string, exchange types.Exchange) {
	c.mu.Lock()
	delete(c.prices, watch.Key(symbol, exchange))
	c.mu.Unlock()
}

func (c *PriceCache) Current(ctx context.Context, symbol string, exchange types.Exchange) (decimal.Decimal, error) {
	c.mu.RLock()
	p, ok := c.prices[watch.Key(symbol, exchange)]
	c.mu.RUnlock()
	if ok && c.now().Sub(p.at) < allPriceTTL {
		return p.price, nil
	}

	if price, err := c.fromAllPrice(ctx, symbol, exchange); err == nil {
		return price, nil
	}

	if c.client == nil {
		return decimal.Zero, ErrNoPrice
	}
	price, err := c.client.LatestPrice(ctx, symbol, exchange)
	if err != nil {
		return decimal.Zero, ErrNoPrice
	}
	c.Set(symbol, exchange, price)
	return price, nil
}

func (c *PriceCache) fromAllPrice(ctx context.Context, symbol string, exchange types.Exchange) (decimal.Decimal, error) {
	if c.rdb == nil {
		return decimal.Zero, ErrNoPrice
	}
	raw, err := c.rdb.HGet(ctx, allPriceKey, string(exchange)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	var ret symbols.BaseReturn
	if err := json.Unmarshal([]byte(raw), &ret); err != nil {
		return decimal.Zero, err
	}
	if ret.TimeProfile == nil {
		return decimal.Zero, ErrNoPrice
	}
	fetched := time.UnixMilli(ret.TimeProfile.ExchangeRequestEndTime)
	if c.now().Sub(fetched) > allPriceTTL {
		return decimal.Zero, ErrNoPrice
	}
	var entries []allPriceEntry
	if err := json.Unmarshal(ret.Data, &entries); err != nil {
		return decimal.Zero, err
	}
	for _, e := range entries {
		if e.Symbol == symbol {
			return decimal.NewFromString(e.Price.String())
		}
	}
	return decimal.Zero, ErrNoPrice
}
