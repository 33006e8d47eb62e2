package jobqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler processes the payload of a single job. The returned value is
// stored as the job's result on success; a non-nil error marks the job
// failed with the error text as result.
type Handler func(ctx context.Context, data json.RawMessage) (json.RawMessage, error)

// HandlerRegistry maps queue names to handlers. It is an explicit
// configuration object passed to each worker at construction rather than
// ambient mutable state; registration is safe before or while worker
// loops are running because workers re-resolve the handler for every job.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry(logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register installs handler for queue. The last registration for a given
// queue wins.
func (r *HandlerRegistry) Register(queue string, handler Handler) {
	r.mu.Lock()
	r.handlers[queue] = handler
	r.mu.Unlock()

	r.logger.Info("Registered handler for queue",
		slog.String("queue", queue),
	)
}

// Resolve returns the handler currently registered for queue
func (r *HandlerRegistry) Resolve(queue string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[queue]
	return h, ok
}
