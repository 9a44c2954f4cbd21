package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/avoren/go-messenger-backend/internal/config"
	"github.com/avoren/go-messenger-backend/internal/presence"
	"github.com/avoren/go-messenger-backend/internal/services"
)

var openConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "websocket_open_connections",
	Help: "Number of currently open websocket connections.",
})

// Handler upgrades HTTP requests to websocket sessions and runs their pumps.
type Handler struct {
	cfg      config.WSConfig
	registry *presence.Registry
	users    services.UserDirectory
	messages *services.MessageService
	chats    *services.ChatService
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint handler. allowedOrigins mirrors the
// CORS configuration; an empty list allows any origin.
func NewHandler(
	cfg config.WSConfig,
	registry *presence.Registry,
	users services.UserDirectory,
	messages *services.MessageService,
	chats *services.ChatService,
	allowedOrigins []string,
) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		cfg:      cfg,
		registry: registry,
		users:    users,
		messages: messages,
		chats:    chats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// Serve is the gin handler for the websocket endpoint. It blocks for the
// lifetime of the connection's read pump.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Debug().Err(err).Msg("websocket upgrade rejected")
		return
	}

	openConnections.Inc()
	defer openConnections.Dec()

	client := NewClient(conn, h.cfg, h.registry, h.users, h.messages, h.chats)
	go client.WritePump()
	client.ReadPump(c.Request.Context())
}
