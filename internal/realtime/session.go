package realtime

import (
	"context"
	"log/slog"
)

// HandleClient reads messages from a registered connection until the
// peer goes away or ctx is cancelled, answering the small client
// protocol: ping is answered with pong, subscribe/unsubscribe are
// acknowledged by log only (channel-scoped filtering is not part of this
// subsystem), and anything else is echoed back. A read error is treated
// as a disconnect.
func (h *Hub) HandleClient(ctx context.Context, connID string) {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	for {
		if ctx.Err() != nil {
			h.Disconnect(connID)
			return
		}

		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("Client read failed, disconnecting",
				slog.String("connection_id", connID),
				slog.Any("error", err),
			)
			h.Disconnect(connID)
			return
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "ping":
			h.SendToConnection(connID, map[string]any{"type": "pong"})

		case "subscribe":
			h.logger.Info("Client subscribed to channels",
				slog.String("connection_id", connID),
				slog.Any("channels", msg["channels"]),
			)

		case "unsubscribe":
			h.logger.Info("Client unsubscribed from channels",
				slog.String("connection_id", connID),
				slog.Any("channels", msg["channels"]),
			)

		default:
			h.SendToConnection(connID, map[string]any{"type": "echo", "data": msg})
		}
	}
}
