package handler

import (
	"log/slog"
	"net/http"

	"github.com/Rohit-kaushik45/bullreckon/internal/realtime"
	"github.com/Rohit-kaushik45/bullreckon/shared/ws"
	"github.com/gin-gonic/gin"
)

// WSHandler handles WebSocket connections and broadcast requests
type WSHandler struct {
	logger   *slog.Logger
	hub      *realtime.Hub
	upgrader *ws.Upgrader
	channel  string
}

// NewWSHandler creates a new WSHandler instance
func NewWSHandler(deps *Dependencies) *WSHandler {
	channel := deps.Channel
	if channel == "" {
		channel = realtime.DefaultBroadcastChannel
	}

	return &WSHandler{
		logger:   deps.Logger,
		hub:      deps.Hub,
		upgrader: deps.Upgrader,
		channel:  channel,
	}
}

// Connect handles GET /ws.
// Upgrades the request, registers the connection (optionally bound to a
// user via the user_id query parameter) and serves the client protocol
// until the peer disconnects.
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	userID := c.Query("user_id")
	connID := h.hub.Connect(conn, userID)

	h.hub.HandleClient(c.Request.Context(), connID)
}

// BroadcastRequest is the body of POST /api/v1/broadcast
type BroadcastRequest struct {
	Message map[string]any `json:"message" binding:"required"`
}

// Broadcast handles POST /api/v1/broadcast.
// Publishes the message on the shared channel so every instance's relay
// fans it out to its local connections.
func (h *WSHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.hub.Publish(c.Request.Context(), h.channel, req.Message); err != nil {
		h.logger.Error("Failed to publish broadcast",
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to publish broadcast",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "published",
	})
}
