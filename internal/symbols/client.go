package symbols

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const clientAttempts = 5

// BaseReturn is the market-data service response envelope.
type BaseReturn struct {
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data"`
	Reason      string          `json:"reason,omitempty"`
	TimeProfile *TimeProfile    `json:"timeProfile,omitempty"`
}

type TimeProfile struct {
	ExchangeRequestEndTime int64 `json:"exchangeRequestEndTime"`
}

type symbolInfo struct {
	Pair                string          `json:"pair"`
	Exchange            string          `json:"exchange"`
	BaseAssetName       string          `json:"baseAsset"`
	BaseMinAmount       json.Number     `json:"baseMinAmount"`
	BaseStep            json.Number     `json:"baseStep"`
	QuoteAssetName      string          `json:"quoteAsset"`
	QuoteMinAmount      json.Number     `json:"quoteMinAmount"`
	PriceAssetPrecision int32           `json:"priceAssetPrecision"`
	MaxOrders           int             `json:"maxOrders"`
}

// Client talks to the external symbol / market-data HTTP service.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(base string, log *zap.Logger) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log.Named("symbolclient"),
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (BaseReturn, error) {
	var out BaseReturn
	op := func() error {
		u := c.base + "/" + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return err
		}
		if out.Status != "OK" {
			return fmt.Errorf("%s: %s", path, out.Reason)
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), clientAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Symbol(ctx context.Context, pair string, exchange types.Exchange) (model.Symbol, error) {
	q := url.Values{"symbol": {pair}, "exchange": {string(exchange)}}
	ret, err := c.get(ctx, "exchange", q)
	if err != nil {
		return model.Symbol{}, err
	}
	var info symbolInfo
	if err := json.Unmarshal(ret.Data, &info); err != nil {
		return model.Symbol{}, err
	}
	return symbolFromInfo(info)
}

func (c *Client) AllSymbols(ctx context.Context, exchange types.Exchange) ([]model.Symbol, error) {
	q := url.Values{"exchange": {string(exchange)}}
	ret, err := c.get(ctx, "exchange/all", q)
	if err != nil {
		return nil, err
	}
	var infos []symbolInfo
	if err := json.Unmarshal(ret.Data, &infos); err != nil {
		return nil, err
	}
	out := make([]model.Symbol, 0, len(infos))
	for _, info := range infos {
		s, err := symbolFromInfo(info)
		if err != nil {
			c.log.Warn("skipping malformed symbol", zap.String("pair", info.Pair), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) LatestPrice(ctx context.Context, pair string, exchange types.Exchange) (decimal.Decimal, error) {
	q := url.Values{"symbol": {pair}, "exchange": {string(exchange)}}
	ret, err := c.get(ctx, "latestPrice", q)
	if err != nil {
		return decimal.Zero, err
	}
	var payload struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(ret.Data, &payload); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(payload.Price.String())
}

// Proxy forwards a market-data query (candles, trades, prices, ...) and
// returns the raw envelope for the REST surface.
func (c *Client) Proxy(ctx context.Context, path string, query url.Values) (BaseReturn, error) {
	return c.get(ctx, path, query)
}

func symbolFromInfo(info symbolInfo) (model.Symbol, error) {
	baseMin, err := decimal.NewFromString(orZero(info.BaseMinAmount))
	if err != nil {
		return model.Symbol{}, fmt.Errorf("baseMinAmount: %w", err)
	}
	baseStep, err := decimal.NewFromString(orZero(info.BaseStep))
	if err != nil {
		return model.Symbol{}, fmt.Errorf("baseStep: %w", err)
	}
	quoteMin, err := decimal.NewFromString(orZero(info.QuoteMinAmount))
	if err != nil {
		return model.Symbol{}, fmt.Errorf("quoteMinAmount: %w", err)
	}
	return model.Symbol{
		Pair:     info.Pair,
		Exchange: types.Exchange(info.Exchange),
		BaseAsset: model.SymbolAsset{
			Name:      info.BaseAssetName,
			MinAmount: baseMin,
			Step:      baseStep,
		},
		QuoteAsset: model.SymbolAsset{
			Name:      info.QuoteAssetName,
			MinAmount: quoteMin,
		},
		PriceAssetPrecision: info.PriceAssetPrecision,
		MaxOrders:           info.MaxOrders,
	}, nil
}

func orZero(n json.Number) string {
	if n == "" {
		return "0"
	}
	return n.String()
}
