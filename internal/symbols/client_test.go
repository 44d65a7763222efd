package symbols

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"papertrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientDecodesSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"data": map[string]any{
				"pair":                "BTCUSDT",
				"exchange":            "binance",
				"baseAsset":           "BTC",
				"baseMinAmount":       "0.0001",
				"baseStep":            0.0001,
				"quoteAsset":          "USDT",
				"quoteMinAmount":      10,
				"priceAssetPrecision": 2,
				"maxOrders":           200,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	sym, err := c.Symbol(context.Background(), "BTCUSDT", types.ExchangeBinance)
	require.NoError(t, err)
	assert.Equal(t, "BTC", sym.BaseAsset.Name)
	assert.Equal(t, "0.0001", sym.BaseAsset.MinAmount.String())
	assert.Equal(t, "10", sym.QuoteAsset.MinAmount.String())
	assert.Equal(t, int32(2), sym.PriceAssetPrecision)
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"data":   map[string]any{"price": "50000"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	price, err := c.LatestPrice(context.Background(), "BTCUSDT", types.ExchangeBinance)
	require.NoError(t, err)
	assert.Equal(t, "50000", price.String())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientSurfacesNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "NOTOK", "reason": "unknown symbol"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.Symbol(context.Background(), "NOPE", types.ExchangeBinance)
	assert.ErrorContains(t, err, "unknown symbol")
}
