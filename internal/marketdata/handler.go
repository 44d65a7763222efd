package marketdata

import (
	"net/http"

	"papertrade/internal/httputil"
	"papertrade/internal/symbols"
)

// Handler proxies market-data queries to the external service so
// clients hit one origin for both trading and data.
type Handler struct {
	client *symbols.Client
}

func NewHandler(client *symbols.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) proxy(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ret, err := h.client.Proxy(r.Context(), path, r.URL.Query())
		if err != nil {
			httputil.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ret)
	}
}

func (h *Handler) AllSymbols() http.HandlerFunc  { return h.proxy("exchange/all") }
func (h *Handler) Symbol() http.HandlerFunc      { return h.proxy("exchange") }
func (h *Handler) LatestPrice() http.HandlerFunc { return h.proxy("latestPrice") }
func (h *Handler) Candles() http.HandlerFunc     { return h.proxy("candles") }
func (h *Handler) Trades() http.HandlerFunc      { return h.proxy("trades") }
func (h *Handler) Prices() http.HandlerFunc      { return h.proxy("prices") }
