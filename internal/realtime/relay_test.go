package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	ch        chan redis.Message
	closeOnce sync.Once
}

func (s *fakeSub) Messages() <-chan redis.Message { return s.ch }

func (s *fakeSub) Close() error {
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}

// fakeBroker is an in-memory Broker: published payloads are delivered to
// every open subscription on the same channel.
type fakeBroker struct {
	mu        sync.Mutex
	published []redis.Message
	subs      []*fakeSub
}

func (b *fakeBroker) Publish(ctx context.Context, channel, payload string) error {
	msg := redis.Message{Channel: channel, Payload: payload}

	b.mu.Lock()
	b.published = append(b.published, msg)
	subs := append([]*fakeSub(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.ch <- msg
	}
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	sub := &fakeSub{ch: make(chan redis.Message)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

func (b *fakeBroker) lastSub() *fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[len(b.subs)-1]
}

func newRelayHub(t *testing.T, broker Broker) *Hub {
	t.Helper()

	hub := NewHub(&HubConfig{
		Broker: broker,
		Logger: testLogger(),
	})
	require.NoError(t, hub.StartRelay(context.Background()))
	t.Cleanup(hub.Shutdown)
	return hub
}

func TestPublishWithoutBrokerIsNoOp(t *testing.T) {
	hub := newTestHub()
	assert.NoError(t, hub.Publish(context.Background(), DefaultBroadcastChannel, map[string]any{"type": "alert"}))
}

func TestStartRelayWithoutBroker(t *testing.T) {
	hub := newTestHub()
	assert.Error(t, hub.StartRelay(context.Background()))
}

func TestPublishReachesRelaySubscribers(t *testing.T) {
	broker := &fakeBroker{}
	hub := newRelayHub(t, broker)

	conn1 := newFakeConn()
	conn2 := newFakeConn()
	hub.Connect(conn1, "alice")
	hub.Connect(conn2, "")

	require.NoError(t, hub.Publish(context.Background(), DefaultBroadcastChannel, map[string]any{"type": "alert", "level": "high"}))

	require.Eventually(t, func() bool {
		return len(conn1.messages()) == 1 && len(conn2.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	msg, ok := conn1.messages()[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alert", msg["type"])
	assert.Equal(t, "high", msg["level"])
}

func TestRelayDropsMalformedPayload(t *testing.T) {
	broker := &fakeBroker{}
	hub := newRelayHub(t, broker)

	conn := newFakeConn()
	hub.Connect(conn, "")

	// A payload that is not valid JSON is dropped; the relay keeps serving
	// the messages behind it.
	broker.lastSub().ch <- redis.Message{Channel: DefaultBroadcastChannel, Payload: "{not json"}
	broker.lastSub().ch <- redis.Message{Channel: DefaultBroadcastChannel, Payload: `{"type":"alert"}`}

	require.Eventually(t, func() bool {
		return len(conn.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	msg, ok := conn.messages()[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alert", msg["type"])
}

func TestShutdownStopsRelay(t *testing.T) {
	broker := &fakeBroker{}
	hub := NewHub(&HubConfig{
		Broker: broker,
		Logger: testLogger(),
	})
	require.NoError(t, hub.StartRelay(context.Background()))

	conn := newFakeConn()
	hub.Connect(conn, "alice")

	// Shutdown returns only after the relay goroutine has exited, so a
	// plain call proves the listener is joined, not leaked.
	hub.Shutdown()

	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, hub.ConnectionCount())
}
