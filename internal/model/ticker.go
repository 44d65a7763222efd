package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

// Ticker is a top-of-book update from the market-data aggregator.
// Numeric fields arrive as either JSON numbers or strings depending on
// the upstream venue, so decoding is lenient.
type Ticker struct {
	Symbol     string
	Exchange   types.Exchange
	BestAsk    decimal.Decimal
	BestBid    decimal.Decimal
	BestAskQnt decimal.Decimal
	BestBidQnt decimal.Decimal
	Price      decimal.Decimal
	Time       int64
	EventTime  int64
}

type rawTicker struct {
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	BestAsk    json.RawMessage `json:"bestAsk"`
	BestBid    json.RawMessage `json:"bestBid"`
	BestAskQnt json.RawMessage `json:"bestAskQnt"`
	BestBidQnt json.RawMessage `json:"bestBidQnt"`
	Price      json.RawMessage `json:"price"`
	Time       json.RawMessage `json:"time"`
	EventTime  json.RawMessage `json:"eventTime"`
}

func (t *Ticker) UnmarshalJSON(data []byte) error {
	var raw rawTicker
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Symbol = raw.Symbol
	t.Exchange = types.Exchange(raw.Exchange)
	var err error
	if t.BestAsk, err = looseDecimal(raw.BestAsk); err != nil {
		return fmt.Errorf("bestAsk: %w", err)
	}
	if t.BestBid, err = looseDecimal(raw.BestBid); err != nil {
		return fmt.Errorf("bestBid: %w", err)
	}
	if t.BestAskQnt, err = looseDecimal(raw.BestAskQnt); err != nil {
		return fmt.Errorf("bestAskQnt: %w", err)
	}
	if t.BestBidQnt, err = looseDecimal(raw.BestBidQnt); err != nil {
		return fmt.Errorf("bestBidQnt: %w", err)
	}
	if t.Price, err = looseDecimal(raw.Price); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if t.Time, err = looseInt(raw.Time); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if t.EventTime, err = looseInt(raw.EventTime); err != nil {
		return fmt.Errorf("eventTime: %w", err)
	}
	return nil
}

// TickerTime prefers eventTime when the aggregator supplied one.
func (t Ticker) TickerTime() int64 {
	if t.EventTime > 0 {
		return t.EventTime
	}
	return t.Time
}

// Signature identifies the priced content of a tick; two ticks with
// equal signatures carry no new information for matching.
func (t Ticker) Signature() string {
	return strings.Join([]string{
		t.BestAsk.String(),
		t.BestBid.String(),
		t.BestAskQnt.String(),
		t.BestBidQnt.String(),
		t.Price.String(),
	}, "|")
}

func looseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func looseInt(raw json.RawMessage) (int64, error) {
	d, err := looseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}
