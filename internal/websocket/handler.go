package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades requests and attaches the connection to the hub
type Handler struct {
	hub      *Hub
	tickets  TicketLookup
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. tickets validates subscribe requests.
func NewHandler(hub *Hub, tickets TicketLookup, upgrader websocket.Upgrader, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, tickets: tickets, upgrader: upgrader, logger: logger}
}

// ServeHTTP upgrades the connection and starts the client pumps. A rejected
// origin is answered 403 by the upgrader.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		}
		return
	}

	client := NewClient(h.hub, conn, h.tickets, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
