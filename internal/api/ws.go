package api

import (
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/hub"
	"github.com/wealthwatch/portfolio-service/internal/transport"
)

// WSHandler upgrades connections and joins them to the authenticated holder's
// event channel. Each connection gets its own subscription, so multiple tabs
// for one holder all receive every event.
type WSHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

// NewWSHandler creates the WebSocket endpoint handler.
func NewWSHandler(h *hub.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: h, logger: logger}
}

// ServeHTTP handles GET /ws.
func (wh *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	holderID, ok := HolderID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		wh.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := wh.hub.Subscribe(holderID)
	session := transport.NewSession(conn, sub, wh.logger)
	session.Start()
}
