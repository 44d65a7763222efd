package httpserver

import (
	"net/http"

	"papertrade/internal/account"
	"papertrade/internal/httputil"
	"papertrade/internal/marketdata"
	"papertrade/internal/orders"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	OrderHandler   *orders.Handler
	AccountHandler *account.Handler
	MarketHandler  *marketdata.Handler
	WSHandler      http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/order", func(r chi.Router) {
		r.Post("/", d.OrderHandler.Create)
		r.Get("/", d.OrderHandler.Get)
		r.Get("/all/open", d.OrderHandler.ListOpen)
		r.Get("/{orderId}", d.OrderHandler.GetByID)
		r.Delete("/", d.OrderHandler.Cancel)
		r.Delete("/byid", d.OrderHandler.CancelByID)
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/leverage", d.AccountHandler.SetLeverage)
		r.Post("/hedge", d.AccountHandler.SetHedge)
		r.Get("/balance", d.AccountHandler.Balance)
		r.Get("/positions", d.AccountHandler.Positions)
		r.Post("/listen-token", d.AccountHandler.ListenToken)
	})

	r.Route("/exchange", func(r chi.Router) {
		r.Get("/all", d.MarketHandler.AllSymbols())
		r.Get("/", d.MarketHandler.Symbol())
		r.Get("/latestPrice", d.MarketHandler.LatestPrice())
		r.Get("/candles", d.MarketHandler.Candles())
		r.Get("/trades", d.MarketHandler.Trades())
		r.Get("/prices", d.MarketHandler.Prices())
	})

	r.Handle("/ws", d.WSHandler)

	return r
}
