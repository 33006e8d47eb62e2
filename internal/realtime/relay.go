package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
)

// Subscription is an active pub/sub subscription stream
type Subscription interface {
	Messages() <-chan redis.Message
	Close() error
}

// Broker publishes and subscribes on named channels of the shared store.
// Delivery is best-effort: there is no acknowledgement or replay.
type Broker interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// redisBroker adapts the shared Redis client to the Broker interface
type redisBroker struct {
	client *redis.Client
}

// NewRedisBroker wraps the shared Redis client as a Broker
func NewRedisBroker(client *redis.Client) Broker {
	return &redisBroker{client: client}
}

func (b *redisBroker) Publish(ctx context.Context, channel, payload string) error {
	_, err := b.client.Publish(ctx, channel, payload)
	return err
}

func (b *redisBroker) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	return b.client.Subscribe(ctx, channels...)
}

// Publish serializes message and publishes it on channel for every
// instance's relay listener to pick up. It is fire-and-forget: there is
// no acknowledgement of remote delivery.
func (h *Hub) Publish(ctx context.Context, channel string, message any) error {
	if h.broker == nil {
		h.logger.Debug("No broker configured, skipping publish",
			slog.String("channel", channel),
		)
		return nil
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	if err := h.broker.Publish(ctx, channel, string(payload)); err != nil {
		return fmt.Errorf("failed to publish to channel %q: %w", channel, err)
	}
	return nil
}

// StartRelay subscribes to the hub's broadcast channel and fans every
// inbound message out to the local connections. One relay per process;
// the listener runs until ctx is cancelled or Shutdown is called, and
// Shutdown waits for it to exit.
func (h *Hub) StartRelay(ctx context.Context) error {
	if h.broker == nil {
		return fmt.Errorf("cannot start relay: no broker configured")
	}

	relayCtx, cancel := context.WithCancel(ctx)

	sub, err := h.broker.Subscribe(relayCtx, h.channel)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to broadcast channel %q: %w", h.channel, err)
	}

	h.relayStop = func() {
		cancel()
		_ = sub.Close()
	}

	h.relayWG.Add(1)
	go h.relayLoop(relayCtx, sub)

	h.logger.Info("Broadcast relay started",
		slog.String("channel", h.channel),
	)
	return nil
}

// relayLoop consumes the subscription until it is closed
func (h *Hub) relayLoop(ctx context.Context, sub Subscription) {
	defer h.relayWG.Done()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	for msg := range sub.Messages() {
		var payload map[string]any
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			// Malformed broadcast payloads are dropped, never propagated.
			h.logger.Error("Invalid JSON in pub/sub message, dropping",
				slog.String("channel", msg.Channel),
				slog.Any("error", err),
			)
			continue
		}

		delivered := h.Broadcast(payload, "")
		h.logger.Debug("Relayed broadcast message",
			slog.String("channel", msg.Channel),
			slog.Int("delivered", delivered),
		)
	}

	h.logger.Info("Broadcast relay stopped")
}
