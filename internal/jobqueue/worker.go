package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
)

const (
	// DefaultIdleInterval is how long a polling worker sleeps after an
	// empty pop before retrying
	DefaultIdleInterval = 1 * time.Second

	// DefaultErrorBackoff is how long a worker sleeps after a loop-level
	// failure (for example an unreachable store) before retrying
	DefaultErrorBackoff = 5 * time.Second
)

// resultNoHandler is the terminal result stored when a job arrives on a
// queue with no registered handler
var resultNoHandler = json.RawMessage(`"No handler"`)

// WorkerConfig holds worker loop configuration. Handlers is required at
// construction: handler lookup is an explicit dependency of the loop, not
// ambient state, though registrations may still arrive after the loop has
// started because resolution happens per job.
type WorkerConfig struct {
	Queue        string
	Manager      *Manager
	Handlers     *HandlerRegistry
	Logger       *slog.Logger
	IdleInterval time.Duration
	ErrorBackoff time.Duration

	// BlockingPop uses the store's blocking pop primitive instead of
	// fixed-interval polling, trading backoff latency for a held
	// connection. The observable behavior is identical.
	BlockingPop bool
}

// Worker is a per-queue loop that claims job ids from the shared queue
// list, executes the registered handler and records the outcome. Any
// number of workers, in any number of processes, may run against the same
// queue; the store's pop is atomic so no two loops observe the same id.
type Worker struct {
	queue        string
	manager      *Manager
	handlers     *HandlerRegistry
	logger       *slog.Logger
	idleInterval time.Duration
	errorBackoff time.Duration
	blockingPop  bool
}

// NewWorker creates a new worker loop for a queue
func NewWorker(cfg *WorkerConfig) *Worker {
	idle := cfg.IdleInterval
	if idle <= 0 {
		idle = DefaultIdleInterval
	}
	backoff := cfg.ErrorBackoff
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}

	return &Worker{
		queue:        cfg.Queue,
		manager:      cfg.Manager,
		handlers:     cfg.Handlers,
		logger:       cfg.Logger.With(slog.String("queue", cfg.Queue)),
		idleInterval: idle,
		errorBackoff: backoff,
		blockingPop:  cfg.BlockingPop,
	}
}

// Run processes jobs until ctx is cancelled; it never terminates on
// transient errors. A cancellation that lands mid-handler leaves the
// current job in the processing state indefinitely; there is no lease or
// requeue mechanism, so recovery of such jobs is the operator's problem.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started",
		slog.Bool("blocking_pop", w.blockingPop),
		slog.Duration("idle_interval", w.idleInterval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping - context cancelled")
			return nil
		default:
		}

		id, err := w.pop(ctx)
		if err != nil {
			if errors.Is(err, redis.ErrNotFound) {
				// Idle: nothing to claim, retry after a fixed interval.
				if !w.sleep(ctx, w.idleInterval) {
					w.logger.Info("Worker stopping - context cancelled")
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				w.logger.Info("Worker stopping - context cancelled")
				return nil
			}

			w.logger.Error("Error polling queue",
				slog.Any("error", err),
				slog.Duration("backoff", w.errorBackoff),
			)
			if !w.sleep(ctx, w.errorBackoff) {
				return nil
			}
			continue
		}

		if err := w.process(ctx, id); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Error processing job",
				slog.String("job_id", id),
				slog.Any("error", err),
				slog.Duration("backoff", w.errorBackoff),
			)
			if !w.sleep(ctx, w.errorBackoff) {
				return nil
			}
		}
	}
}

// pop claims the next job id from the queue list
func (w *Worker) pop(ctx context.Context) (string, error) {
	if w.blockingPop {
		return w.manager.store.BRPop(ctx, w.idleInterval, queueKey(w.queue))
	}
	return w.manager.store.RPop(ctx, queueKey(w.queue))
}

// process loads the claimed job, runs its handler and records the
// outcome. A returned error is a loop-level (store) failure; handler
// failures are terminal job states, not errors.
func (w *Worker) process(ctx context.Context, id string) error {
	job, err := w.manager.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			// The record-before-push ordering on enqueue makes this rare,
			// but a popped id without a record is a no-op, never fatal.
			w.logger.Debug("Popped job id with no backing record, skipping",
				slog.String("job_id", id),
			)
			return nil
		}
		return err
	}

	if err := w.manager.updateJobStatus(ctx, id, StatusProcessing, nil); err != nil {
		return err
	}

	handler, ok := w.handlers.Resolve(job.Queue)
	if !ok {
		w.logger.Warn("No handler registered for queue",
			slog.String("job_id", id),
		)
		return w.manager.updateJobStatus(ctx, id, StatusFailed, resultNoHandler)
	}

	result, handlerErr := handler(ctx, job.Data)

	if ctx.Err() != nil {
		// Cancelled mid-processing: the job stays in processing. Recording
		// a terminal state here would race the shutdown that is already
		// under way.
		w.logger.Warn("Worker cancelled mid-processing, job left in processing state",
			slog.String("job_id", id),
		)
		return nil
	}

	if handlerErr != nil {
		w.logger.Error("Job failed",
			slog.String("job_id", id),
			slog.Any("error", handlerErr),
		)

		errResult, _ := json.Marshal(handlerErr.Error())
		return w.manager.updateJobStatus(ctx, id, StatusFailed, errResult)
	}

	w.logger.Info("Job completed",
		slog.String("job_id", id),
	)
	return w.manager.updateJobStatus(ctx, id, StatusCompleted, result)
}

// sleep waits for d or until ctx is cancelled; it reports whether the
// full interval elapsed
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
