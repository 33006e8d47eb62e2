package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
)

// Store is the subset of the shared Redis client the queue subsystem
// relies on. Absent keys and empty lists are signalled with
// redis.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	LPush(ctx context.Context, key string, values ...string) error
	RPop(ctx context.Context, key string) (string, error)
	BRPop(ctx context.Context, timeout time.Duration, key string) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// JobStore persists job records keyed by job id. It is a pure data-access
// layer: one store operation per call, no retries. Retry policy belongs
// to the caller.
type JobStore struct {
	store  Store
	logger *slog.Logger
}

// NewJobStore creates a new JobStore over the shared store
func NewJobStore(store Store, logger *slog.Logger) *JobStore {
	return &JobStore{
		store:  store,
		logger: logger,
	}
}

// Put serializes and writes the full job record, overwriting any prior
// record with the same id. There are no merge semantics: callers must
// read-modify-write the whole record.
func (s *JobStore) Put(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %q: %w", job.ID, err)
	}

	if err := s.store.Set(ctx, jobKey(job.ID), string(data), 0); err != nil {
		return fmt.Errorf("failed to store job %q: %w", job.ID, err)
	}
	return nil
}

// Get returns the current record for id, or ErrJobNotFound if no record
// exists
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %q: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %q: %w", id, err)
	}
	return &job, nil
}
