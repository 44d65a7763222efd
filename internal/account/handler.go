package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"papertrade/internal/auth"
	"papertrade/internal/httputil"
	"papertrade/internal/model"
	"papertrade/internal/types"
)

type Handler struct {
	svc     *Service
	authSvc *auth.Service
}

func NewHandler(svc *Service, authSvc *auth.Service) *Handler {
	return &Handler{svc: svc, authSvc: authSvc}
}

func (h *Handler) resolve(r *http.Request) (model.User, error) {
	return h.authSvc.Resolve(r.Context(), r.Header.Get("X-API-KEY"), r.Header.Get("X-API-SECRET"))
}

type leverageBody struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Side     string `json:"side"`
	Leverage int    `json:"leverage"`
}

func (h *Handler) SetLeverage(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "User not found")
		return
	}
	var body leverageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	row, err := h.svc.SetLeverage(r.Context(), user.ID, body.Symbol, types.Exchange(body.Exchange), types.PositionSide(body.Side), body.Leverage)
	if err != nil {
		writeAccountError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, row)
}

type hedgeBody struct {
	Hedge bool `json:"hedge"`
}

func (h *Handler) SetHedge(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "User not found")
		return
	}
	var body hedgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.svc.SetHedge(r.Context(), user.ID, body.Hedge); err != nil {
		writeAccountError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"hedge": body.Hedge})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "User not found")
		return
	}
	rows, err := h.svc.Balances(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "User not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.svc.Positions(user.ID))
}

func (h *Handler) ListenToken(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "User not found")
		return
	}
	token, err := h.authSvc.ListenToken(user)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"listenToken": token})
}

func writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLeverageLocked),
		errors.Is(err, ErrLeverageRange),
		errors.Is(err, ErrHedgeInUse),
		errors.Is(err, ErrUnknownExchange):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
