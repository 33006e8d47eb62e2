package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotConnected is returned when an operation is attempted on a client
// that was never connected or has been closed.
var ErrNotConnected = errors.New("redis client is not connected")

// ErrNotFound is returned when a key (or list element) does not exist.
var ErrNotFound = errors.New("redis key not found")

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// FromEnv builds a Config from REDIS_* environment variables with the
// same defaults as the other services use.
func FromEnv() *Config {
	cfg := &Config{
		Host:     "localhost",
		Port:     6379,
		Password: os.Getenv("REDIS_PASSWORD"),
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("REDIS_PORT")); err == nil {
		cfg.Port = port
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.DB = db
	}

	return cfg
}

// Client represents a Redis client shared by the queue and realtime
// subsystems. It is the only cross-process coordination point: key/value
// records, queue lists and pub/sub channels all live here.
type Client struct {
	rdb    *goredis.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	logger.Info("Connecting to Redis",
		slog.String("addr", addr),
		slog.Int("db", config.DB),
	)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis",
			slog.Any("error", err),
		)
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis",
		slog.String("addr", addr),
	)

	return &Client{
		rdb:    rdb,
		config: config,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")

	if c.rdb == nil {
		return nil
	}

	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection",
			slog.Any("error", err),
		)
		return err
	}

	c.rdb = nil
	c.logger.Info("Redis connection closed successfully")
	return nil
}

// Get returns the value stored under key, or ErrNotFound if the key
// does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", ErrNotConnected
	}

	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A ttl of zero means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.rdb == nil {
		return ErrNotConnected
	}

	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes key and returns the number of keys removed
func (c *Client) Delete(ctx context.Context, key string) (int64, error) {
	if c.rdb == nil {
		return 0, ErrNotConnected
	}

	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return n, nil
}

// Exists reports whether key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if c.rdb == nil {
		return false, ErrNotConnected
	}

	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key %q: %w", key, err)
	}
	return n > 0, nil
}

// Expire sets a time-to-live on key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if c.rdb == nil {
		return ErrNotConnected
	}

	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire key %q: %w", key, err)
	}
	return nil
}

// LPush pushes values onto the head of the list stored under key
func (c *Client) LPush(ctx context.Context, key string, values ...string) error {
	if c.rdb == nil {
		return ErrNotConnected
	}

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}

	if err := c.rdb.LPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("failed to push to list %q: %w", key, err)
	}
	return nil
}

// RPop pops a value from the tail of the list stored under key.
// The pop is atomic across concurrent callers; an empty list returns
// ErrNotFound.
func (c *Client) RPop(ctx context.Context, key string) (string, error) {
	if c.rdb == nil {
		return "", ErrNotConnected
	}

	val, err := c.rdb.RPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to pop from list %q: %w", key, err)
	}
	return val, nil
}

// BRPop pops a value from the tail of the list stored under key, blocking
// up to timeout. A timeout with no value returns ErrNotFound.
func (c *Client) BRPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	if c.rdb == nil {
		return "", ErrNotConnected
	}

	vals, err := c.rdb.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to blocking-pop from list %q: %w", key, err)
	}

	// BRPop returns [key, value]
	if len(vals) != 2 {
		return "", fmt.Errorf("unexpected BRPOP reply for list %q: %v", key, vals)
	}
	return vals[1], nil
}

// LLen returns the length of the list stored under key
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	if c.rdb == nil {
		return 0, ErrNotConnected
	}

	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of list %q: %w", key, err)
	}
	return n, nil
}

// Publish publishes message on channel and returns the number of
// subscribers that received it
func (c *Client) Publish(ctx context.Context, channel, message string) (int64, error) {
	if c.rdb == nil {
		return 0, ErrNotConnected
	}

	n, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to channel %q: %w", channel, err)
	}
	return n, nil
}

// Message is a single pub/sub message delivered to a Subscription
type Message struct {
	Channel string
	Payload string
}

// Subscription is an active pub/sub subscription. Close must be called to
// release the underlying connection; the Messages channel is closed once
// the subscription ends.
type Subscription struct {
	pubsub *goredis.PubSub
	ch     chan Message
}

// Messages returns the stream of inbound messages
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Close terminates the subscription
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe subscribes to the given channels. Delivery is at-least-once,
// best-effort ordered, and only reaches currently-subscribed listeners.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	if c.rdb == nil {
		return nil, ErrNotConnected
	}

	pubsub := c.rdb.Subscribe(ctx, channels...)

	// Force the subscription onto the wire before returning so callers
	// don't publish into the void.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channels %v: %w", channels, err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		ch:     make(chan Message),
	}

	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			sub.ch <- Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	c.logger.Debug("Subscribed to Redis channels",
		slog.Any("channels", channels),
	)

	return sub, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return ErrNotConnected
	}
	return c.rdb.Ping(ctx).Err()
}

// HealthCheck performs a health check against Redis
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.rdb == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
