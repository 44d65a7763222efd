package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"papertrade/internal/httputil"
	"papertrade/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createOrderBody struct {
	Symbol       string `json:"symbol"`
	Exchange     string `json:"exchange"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	ExternalID   string `json:"externalId"`
	ReduceOnly   bool   `json:"reduceOnly"`
	PositionSide string `json:"positionSide"`
}

func credentials(r *http.Request) (string, string) {
	return r.Header.Get("X-API-KEY"), r.Header.Get("X-API-SECRET")
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	price := decimal.Zero
	if body.Price != "" {
		var err error
		price, err = decimal.NewFromString(body.Price)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid price")
			return
		}
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	key, secret := credentials(r)
	o, err := h.svc.CreateOrder(r.Context(), CreateOrderRequest{
		APIKey:       key,
		APISecret:    secret,
		Symbol:       body.Symbol,
		Exchange:     types.Exchange(body.Exchange),
		Side:         types.OrderSide(body.Side),
		Type:         types.OrderType(body.Type),
		Price:        price,
		Amount:       amount,
		ExternalID:   body.ExternalID,
		ReduceOnly:   body.ReduceOnly,
		PositionSide: types.PositionSide(body.PositionSide),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key, secret := credentials(r)
	user, err := h.svc.auth.Resolve(r.Context(), key, secret)
	if err != nil {
		writeServiceError(w, ErrUserNotFound)
		return
	}
	o, err := h.svc.GetOrder(r.Context(), user.ID, r.URL.Query().Get("externalId"), r.URL.Query().Get("symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	key, secret := credentials(r)
	user, err := h.svc.auth.Resolve(r.Context(), key, secret)
	if err != nil {
		writeServiceError(w, ErrUserNotFound)
		return
	}
	o, err := h.svc.GetOrderByID(r.Context(), user.ID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	key, secret := credentials(r)
	user, err := h.svc.auth.Resolve(r.Context(), key, secret)
	if err != nil {
		writeServiceError(w, ErrUserNotFound)
		return
	}
	out, err := h.svc.ListOpenOrders(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	key, secret := credentials(r)
	o, err := h.svc.CancelOrder(r.Context(), CancelOrderRequest{
		APIKey:     key,
		APISecret:  secret,
		ExternalID: r.URL.Query().Get("externalId"),
		Symbol:     r.URL.Query().Get("symbol"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelByID(w http.ResponseWriter, r *http.Request) {
	key, secret := credentials(r)
	o, err := h.svc.CancelOrder(r.Context(), CancelOrderRequest{
		APIKey:    key,
		APISecret: secret,
		OrderID:   r.URL.Query().Get("orderId"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSymbolNotFound),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrReduceRejected),
		errors.Is(err, ErrHedgeMode),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrOrderTerminal),
		errors.Is(err, ErrDuplicateOrder),
		errors.Is(err, ErrTooManyOrders),
		errors.Is(err, ErrBadRequest):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
