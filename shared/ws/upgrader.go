package ws

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Config holds WebSocket upgrade configuration
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowAnyOrigin  bool
}

// Upgrader upgrades HTTP requests to WebSocket connections
type Upgrader struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewUpgrader creates a new WebSocket upgrader
func NewUpgrader(config *Config, logger *slog.Logger) *Upgrader {
	readBuf := config.ReadBufferSize
	if readBuf <= 0 {
		readBuf = 1024
	}
	writeBuf := config.WriteBufferSize
	if writeBuf <= 0 {
		writeBuf = 1024
	}

	u := websocket.Upgrader{
		ReadBufferSize:  readBuf,
		WriteBufferSize: writeBuf,
	}
	if config.AllowAnyOrigin {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Upgrader{
		upgrader: u,
		logger:   logger,
	}
}

// Upgrade switches the request to the WebSocket protocol and returns the
// live connection
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.logger.Error("Failed to upgrade connection",
			slog.String("remote", r.RemoteAddr),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	u.logger.Debug("Connection upgraded",
		slog.String("remote", r.RemoteAddr),
	)
	return conn, nil
}
