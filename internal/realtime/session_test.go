package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startClient(t *testing.T, hub *Hub, conn *fakeConn, userID string) string {
	t.Helper()

	connID := hub.Connect(conn, userID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.HandleClient(context.Background(), connID)
	}()

	t.Cleanup(func() {
		conn.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("client loop did not exit")
		}
	})
	return connID
}

func TestHandleClientPingPong(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	startClient(t, hub, conn, "")

	conn.inbox <- map[string]any{"type": "ping"}

	require.Eventually(t, func() bool {
		return len(conn.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, map[string]any{"type": "pong"}, conn.messages()[0])
}

func TestHandleClientEchoesUnknownTypes(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	startClient(t, hub, conn, "")

	sent := map[string]any{"type": "order", "symbol": "AAPL"}
	conn.inbox <- sent

	require.Eventually(t, func() bool {
		return len(conn.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, map[string]any{"type": "echo", "data": sent}, conn.messages()[0])
}

func TestHandleClientSubscribeIsAcknowledgedSilently(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()
	startClient(t, hub, conn, "")

	conn.inbox <- map[string]any{"type": "subscribe", "channels": []any{"quotes"}}
	conn.inbox <- map[string]any{"type": "unsubscribe", "channels": []any{"quotes"}}
	conn.inbox <- map[string]any{"type": "ping"}

	// Only the ping produces a reply; subscribe and unsubscribe do not.
	require.Eventually(t, func() bool {
		return len(conn.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, map[string]any{"type": "pong"}, conn.messages()[0])
}

func TestHandleClientDisconnectsOnReadError(t *testing.T) {
	hub := newTestHub()
	conn := newFakeConn()

	connID := hub.Connect(conn, "alice")
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.HandleClient(context.Background(), connID)
	}()

	// Closing the peer makes the next read fail; the loop must deregister
	// the connection and exit.
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client loop did not exit after read error")
	}

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.UserCount())
}

func TestHandleClientUnknownConnection(t *testing.T) {
	hub := newTestHub()

	// Returns immediately for an id that was never registered.
	hub.HandleClient(context.Background(), "no-such-id")
}
