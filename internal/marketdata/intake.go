package marketdata

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"papertrade/internal/locks"
	"papertrade/internal/model"
	"papertrade/internal/types"
	"papertrade/internal/watch"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix       = "trade@"
	staleTickAfter      = 30 * time.Second
	reconnectStep       = 3 * time.Second
	reconnectAttempts   = 1000
	resubscribeAttempts = 15
)

// Engine consumes coalesced per-exchange tick batches. Batches for one
// exchange are delivered in arrival order and never concurrently.
type Engine interface {
	ProcessBatch(ctx context.Context, exchange types.Exchange, batch map[string]model.Ticker)
}

// Intake owns the market-data subscription lifecycle: it subscribes to
// trade@<symbol>@<exchange> channels for every watched symbol, filters
// out stale and duplicate ticks, and coalesces the survivors into
// per-exchange batches handed to the matching engine under the ticker
// lock.
type Intake struct {
	rdb    *redis.Client
	watch  *watch.Set
	prices *PriceCache
	locks  *locks.Manager
	log    *zap.Logger
	now    func() time.Time

	mu               sync.Mutex
	engine           Engine
	pubsub           *redis.PubSub
	lastExchangeTime map[types.Exchange]int64
	lastSignature    map[string]string
	pending          map[types.Exchange]map[string]model.Ticker
	wake             map[types.Exchange]chan struct{}
}

func NewIntake(rdb *redis.Client, ws *watch.Set, prices *PriceCache, lm *locks.Manager, log *zap.Logger) *Intake {
	return &Intake{
		rdb:              rdb,
		watch:            ws,
		prices:           prices,
		locks:            lm,
		log:              log.Named("intake"),
		now:              time.Now,
		lastExchangeTime: make(map[types.Exchange]int64),
		lastSignature:    make(map[string]string),
		pending:          make(map[types.Exchange]map[string]model.Ticker),
		wake:             make(map[types.Exchange]chan struct{}),
	}
}

// SetEngine wires the batch consumer; called once before Run.
func (i *Intake) SetEngine(e Engine) {
	i.mu.Lock()
	i.engine = e
	i.mu.Unlock()
}

// Subscribe starts delivery for a symbol@exchange key.
func (i *Intake) Subscribe(ctx context.Context, key string) error {
	i.mu.Lock()
	ps := i.pubsub
	i.mu.Unlock()
	if ps == nil {
		// Run will pick the key up from the watch set when it connects.
		return nil
	}
	return ps.Subscribe(ctx, channelPrefix+key)
}

func (i *Intake) Unsubscribe(ctx context.Context, key string) error {
	i.mu.Lock()
	ps := i.pubsub
	i.mu.Unlock()
	if ps == nil {
		return nil
	}
	return ps.Unsubscribe(ctx, channelPrefix+key)
}

// Run owns the pub/sub connection until ctx is canceled, reconnecting
// with 3s steps and replaying the watch set's channels after every
// reconnect.
func (i *Intake) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ps, err := i.connect(ctx)
		if err != nil {
			i.log.Error("market-data connect failed", zap.Error(err))
			return
		}
		i.consume(ctx, ps)
		_ = ps.Close()
		i.mu.Lock()
		i.pubsub = nil
		i.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		i.log.Warn("market-data stream lost, reconnecting")
	}
}

func (i *Intake) connect(ctx context.Context) (*redis.PubSub, error) {
	var ps *redis.PubSub
	op := func() error {
		if ps != nil {
			_ = ps.Close()
		}
		ps = i.rdb.Subscribe(ctx)
		keys := i.watch.Keys()
		channels := make([]string, 0, len(keys))
		for _, k := range keys {
			channels = append(channels, channelPrefix+k)
		}
		if len(channels) == 0 {
			return nil
		}
		for attempt := 1; ; attempt++ {
			err := ps.Subscribe(ctx, channels...)
			if err == nil {
				return nil
			}
			if attempt >= resubscribeAttempts {
				// Force a fresh client on the next retry round.
				return err
			}
			i.log.Warn("resubscribe failed", zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(reconnectStep), reconnectAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	i.mu.Lock()
	i.pubsub = ps
	i.mu.Unlock()
	return ps, nil
}

func (i *Intake) consume(ctx context.Context, ps *redis.PubSub) {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			i.handleMessage(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (i *Intake) handleMessage(ctx context.Context, channel string, payload []byte) {
	var tick model.Ticker
	if err := json.Unmarshal(payload, &tick); err != nil {
		i.log.Warn("undecodable tick", zap.String("channel", channel), zap.Error(err))
		return
	}
	if tick.Symbol == "" || tick.Exchange == "" {
		// Fall back to the channel name trade@<symbol>@<exchange>.
		parts := strings.Split(strings.TrimPrefix(channel, channelPrefix), "@")
		if len(parts) == 2 {
			tick.Symbol = parts[0]
			tick.Exchange = types.Exchange(parts[1])
		}
	}
	if !i.admit(tick) {
		return
	}
	i.prices.Set(tick.Symbol, tick.Exchange, tick.Price)
	i.enqueue(ctx, tick)
}

// admit applies the three tick filters in order: per-exchange
// monotonicity, freshness, signature dedup.
func (i *Intake) admit(tick model.Ticker) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	ts := tick.TickerTime()
	if last, ok := i.lastExchangeTime[tick.Exchange]; ok && ts < last {
		return false
	}
	i.lastExchangeTime[tick.Exchange] = ts

	if time.UnixMilli(ts).Add(staleTickAfter).Before(i.now()) {
		i.log.Warn("stale tick discarded",
			zap.String("symbol", tick.Symbol),
			zap.String("exchange", string(tick.Exchange)),
			zap.Int64("tickerTime", ts))
		i.prices.Invalidate(tick.Symbol, tick.Exchange)
		return false
	}

	sigKey := watch.Key(tick.Symbol, tick.Exchange)
	sig := tick.Signature()
	if i.lastSignature[sigKey] == sig {
		return false
	}
	i.lastSignature[sigKey] = sig
	return true
}

func (i *Intake) enqueue(ctx context.Context, tick model.Ticker) {
	i.mu.Lock()
	batch, ok := i.pending[tick.Exchange]
	if !ok {
		batch = make(map[string]model.Ticker)
		i.pending[tick.Exchange] = batch
	}
	batch[tick.Symbol] = tick
	wake, ok := i.wake[tick.Exchange]
	if !ok {
		wake = make(chan struct{}, 1)
		i.wake[tick.Exchange] = wake
		go i.exchangeWorker(ctx, tick.Exchange, wake)
	}
	i.mu.Unlock()
	select {
	case wake <- struct{}{}:
	default:
	}
}

// exchangeWorker drains batches for one exchange under the ticker lock,
// so settlement work for two ticks of the same exchange never
// interleaves.
func (i *Intake) exchangeWorker(ctx context.Context, exchange types.Exchange, wake chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
		for {
			i.mu.Lock()
			batch := i.pending[exchange]
			delete(i.pending, exchange)
			engine := i.engine
			i.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			if engine == nil {
				break
			}
			_ = i.locks.WithLock(locks.TickerKey(string(exchange)), func() error {
				engine.ProcessBatch(ctx, exchange, batch)
				return nil
			})
		}
	}
}
