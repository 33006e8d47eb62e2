package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds queue manager configuration
type Config struct {
	Store  Store
	Logger *slog.Logger
}

// Manager enqueues jobs and exposes read access to job records and queue
// statistics. Any number of Manager instances across processes may share
// the same store; correctness relies on the store's atomic pop and write
// primitives, there is no client-side locking.
type Manager struct {
	store   Store
	records *JobStore
	logger  *slog.Logger

	// mirror holds the jobs this process has seen. It is a best-effort,
	// non-authoritative cache used only for Stats counters; it understates
	// work done by other instances. Reads of record state always go
	// through the store.
	mu     sync.RWMutex
	mirror map[string]*Job
}

// NewManager creates a new queue manager
func NewManager(cfg *Config) *Manager {
	return &Manager{
		store:   cfg.Store,
		records: NewJobStore(cfg.Store, cfg.Logger),
		logger:  cfg.Logger,
		mirror:  make(map[string]*Job),
	}
}

// Enqueue creates a job with a generated id of the form
// <queue>_<millisecond-timestamp> and pushes it onto the named queue.
// It returns the job id; it never blocks on downstream processing.
func (m *Manager) Enqueue(ctx context.Context, queue string, data json.RawMessage) (string, error) {
	id := fmt.Sprintf("%s_%d", queue, time.Now().UnixMilli())
	return m.EnqueueWithID(ctx, queue, id, data)
}

// EnqueueWithID creates a job under a caller-supplied id. A colliding id
// silently overwrites the previous record (last write wins); the id then
// appears in the queue list once per enqueue, so a duplicated id is
// processed once per occurrence.
func (m *Manager) EnqueueWithID(ctx context.Context, queue, id string, data json.RawMessage) (string, error) {
	if queue == "" {
		return "", ErrEmptyQueueName
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        id,
		Queue:     queue,
		Data:      data,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The record must exist before its id is visible in the queue,
	// otherwise a racing worker could pop an id with no backing record.
	if err := m.records.Put(ctx, job); err != nil {
		return "", fmt.Errorf("failed to persist job %q: %w", id, err)
	}

	if err := m.store.LPush(ctx, queueKey(queue), id); err != nil {
		return "", fmt.Errorf("failed to push job %q onto queue %q: %w", id, queue, err)
	}

	m.noteJob(job)

	m.logger.Info("Added job to queue",
		slog.String("job_id", id),
		slog.String("queue", queue),
	)

	return id, nil
}

// GetJob reads the current job record from the store. The local mirror is
// never consulted: the store is the system of record.
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	return m.records.Get(ctx, id)
}

// QueueStats describes a queue. QueueLength is authoritative (read from
// the store); the job counters come from the process-local mirror and
// understate jobs handled by other instances. That inaccuracy is a known
// property of the design, not something Stats tries to mask.
type QueueStats struct {
	QueueLength   int64 `json:"queue_length"`
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int   `json:"completed_jobs"`
	FailedJobs    int   `json:"failed_jobs"`
}

// Stats returns statistics for the named queue
func (m *Manager) Stats(ctx context.Context, queue string) (*QueueStats, error) {
	length, err := m.store.LLen(ctx, queueKey(queue))
	if err != nil {
		return nil, fmt.Errorf("failed to get length of queue %q: %w", queue, err)
	}

	stats := &QueueStats{QueueLength: length}

	m.mu.RLock()
	for _, job := range m.mirror {
		if job.Queue != queue {
			continue
		}
		switch job.Status {
		case StatusProcessing:
			stats.ActiveJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
	}
	m.mu.RUnlock()

	return stats, nil
}

// updateJobStatus performs the read-modify-write of a status transition:
// fresh read from the store, mutate, write the whole record back. A nil
// result leaves the previous result untouched.
func (m *Manager) updateJobStatus(ctx context.Context, id string, status Status, result json.RawMessage) error {
	job, err := m.records.Get(ctx, id)
	if err != nil {
		return err
	}

	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if result != nil {
		job.Result = result
	}

	if err := m.records.Put(ctx, job); err != nil {
		return err
	}

	m.noteJob(job)

	m.logger.Info("Updated job status",
		slog.String("job_id", id),
		slog.String("status", string(status)),
	)

	return nil
}

// noteJob records a copy of the job in the local mirror
func (m *Manager) noteJob(job *Job) {
	copied := *job
	m.mu.Lock()
	m.mirror[job.ID] = &copied
	m.mu.Unlock()
}
