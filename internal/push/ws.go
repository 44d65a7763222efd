package push

import (
	"net/http"
	"time"

	"papertrade/internal/auth"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// WSHandler upgrades authenticated clients onto their per-user event
// stream. The listen token travels in the query string because browser
// websocket clients cannot set headers.
type WSHandler struct {
	bus      *Bus
	auth     *auth.Service
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *Bus, authSvc *auth.Service, origin string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		bus:  bus,
		auth: authSvc,
		log:  log.Named("push"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin == "" || origin == "*" || r.Header.Get("Origin") == origin
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := h.auth.ParseListenToken(token)
	if err != nil {
		http.Error(w, "invalid listen token", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := h.bus.Subscribe(userID)
	defer h.bus.Unsubscribe(userID, ch)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
