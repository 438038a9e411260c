package websocket

import (
	"net/http"

	"github.com/dialdesk/acd/internal/config"
	"github.com/dialdesk/acd/internal/statebus"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler handles WebSocket upgrade requests for one endpoint flavor:
// the state ingress (bus set) or the observer feed (bus nil)
type Handler struct {
	hub    *Hub
	config *config.Config
	logger zerolog.Logger
	bus    *statebus.Bus
}

// NewIngressHandler creates the handler for the device-state feed
func NewIngressHandler(hub *Hub, cfg *config.Config, bus *statebus.Bus, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, config: cfg, logger: logger, bus: bus}
}

// NewObserverHandler creates the handler for read-only event observers
func NewObserverHandler(hub *Hub, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, config: cfg, logger: logger}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.config.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	// Create new client
	client := NewClient(h.hub, conn, h.config, h.logger, h.bus)

	// Register client with hub
	h.hub.register <- client

	// Start client pumps
	client.Start()
}
