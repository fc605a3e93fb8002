package handlers

import (
	"log"
	"net/http"

	"launchpad-backend/internal/services"

	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades /ws/prices connections and hands them to the
// price feed hub.
type WebSocketHandler struct {
	priceFeed *services.PriceFeedService
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(priceFeed *services.PriceFeedService) *WebSocketHandler {
	return &WebSocketHandler{
		priceFeed: priceFeed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket handles GET /ws/prices.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}
	h.priceFeed.HandleConnection(conn)
}
