package jobqueue

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a job. Transitions only move forward
// along queued -> processing -> completed|failed; a job never re-enters
// queued once it has been picked up.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is a terminal state
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a unit of asynchronous work persisted in the shared store.
// The store is the system of record; any in-process copy is a best-effort
// mirror and must never be trusted over a fresh read.
type Job struct {
	ID        string          `json:"id"`
	Queue     string          `json:"queue"`
	Data      json.RawMessage `json:"data"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func jobKey(id string) string {
	return "job:" + id
}

func queueKey(name string) string {
	return "queue:" + name
}
