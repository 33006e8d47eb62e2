package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBroadcastChannel is the well-known pub/sub channel every
// instance relays broadcasts through
const DefaultBroadcastChannel = "websocket_broadcast"

// HubConfig holds hub configuration. Broker may be nil for a
// single-instance deployment; cross-instance broadcast is then disabled.
type HubConfig struct {
	Broker  Broker
	Channel string
	Logger  *slog.Logger
}

// Hub is the per-process registry of live client connections. Connections
// are owned exclusively by the process that accepted them and are never
// shared across instances; the only cross-instance path is the broadcast
// relay. All maps are guarded by mu so interleaved connect/disconnect
// calls cannot corrupt them.
type Hub struct {
	broker  Broker
	channel string
	logger  *slog.Logger

	mu        sync.RWMutex
	conns     map[string]Conn
	userConns map[string]map[string]struct{}
	connUser  map[string]string

	relayWG   sync.WaitGroup
	relayStop func()
}

// NewHub creates a new connection hub
func NewHub(cfg *HubConfig) *Hub {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultBroadcastChannel
	}

	return &Hub{
		broker:    cfg.Broker,
		channel:   channel,
		logger:    cfg.Logger,
		conns:     make(map[string]Conn),
		userConns: make(map[string]map[string]struct{}),
		connUser:  make(map[string]string),
	}
}

// Connect registers a live connection and returns its fresh connection
// id. An empty userID registers the connection as anonymous; a user may
// hold any number of concurrent connections.
func (h *Hub) Connect(conn Conn, userID string) string {
	connID := uuid.NewString()

	h.mu.Lock()
	h.conns[connID] = conn
	if userID != "" {
		set, ok := h.userConns[userID]
		if !ok {
			set = make(map[string]struct{})
			h.userConns[userID] = set
		}
		set[connID] = struct{}{}
		h.connUser[connID] = userID
	}
	h.mu.Unlock()

	h.logger.Info("Client connected",
		slog.String("connection_id", connID),
		slog.String("user_id", userID),
	)

	return connID
}

// Disconnect closes and removes a connection. It is idempotent: an
// already-absent id is a no-op. Close failures are swallowed; the peer
// is gone either way.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.conns, connID)

	if userID, owned := h.connUser[connID]; owned {
		delete(h.connUser, connID)
		if set, exists := h.userConns[userID]; exists {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.userConns, userID)
			}
		}
	}
	h.mu.Unlock()

	_ = conn.Close()

	h.logger.Info("Client disconnected",
		slog.String("connection_id", connID),
	)
}

// SendToConnection delivers message to a single connection. It returns
// false for an unknown id; a failed send is treated as the peer having
// already disconnected, so the connection is cleaned up before false is
// returned.
func (h *Hub) SendToConnection(connID string, message any) bool {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	if err := conn.WriteJSON(message); err != nil {
		h.logger.Error("Failed to send message, dropping connection",
			slog.String("connection_id", connID),
			slog.Any("error", err),
		)
		h.Disconnect(connID)
		return false
	}
	return true
}

// SendToUser delivers message to every connection the user owns at call
// time and returns the number delivered. The connection set is snapshotted
// first: connections added mid-call are not included and removals cannot
// break the iteration.
func (h *Hub) SendToUser(userID string, message any) int {
	h.mu.RLock()
	ids := make([]string, 0, len(h.userConns[userID]))
	for connID := range h.userConns[userID] {
		ids = append(ids, connID)
	}
	h.mu.RUnlock()

	sent := 0
	for _, connID := range ids {
		if h.SendToConnection(connID, message) {
			sent++
		}
	}
	return sent
}

// Broadcast delivers message to every live connection except those owned
// by excludeUser, returning the number delivered
func (h *Hub) Broadcast(message any, excludeUser string) int {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for connID := range h.conns {
		if excludeUser != "" && h.connUser[connID] == excludeUser {
			continue
		}
		ids = append(ids, connID)
	}
	h.mu.RUnlock()

	sent := 0
	for _, connID := range ids {
		if h.SendToConnection(connID, message) {
			sent++
		}
	}
	return sent
}

// ConnectionCount returns the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// UserCount returns the number of distinct users with at least one
// connection
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns)
}

// Shutdown disconnects every client and stops the relay listener,
// waiting for it to finish so no background activity outlives the hub
func (h *Hub) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for connID := range h.conns {
		ids = append(ids, connID)
	}
	h.mu.RUnlock()

	for _, connID := range ids {
		h.Disconnect(connID)
	}

	if h.relayStop != nil {
		h.relayStop()
	}
	h.relayWG.Wait()

	h.logger.Info("Hub shut down")
}
