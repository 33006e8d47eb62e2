package jobqueue

import "errors"

var (
	// ErrJobNotFound is returned when a job record does not exist in the
	// shared store
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyQueueName is returned when a queue name is missing
	ErrEmptyQueueName = errors.New("queue name must not be empty")
)
