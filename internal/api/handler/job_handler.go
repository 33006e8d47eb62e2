package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Rohit-kaushik45/bullreckon/internal/jobqueue"
	"github.com/gin-gonic/gin"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	queue  *jobqueue.Manager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		queue:  deps.Queue,
	}
}

// CreateJobRequest is the body of POST /api/v1/jobs
type CreateJobRequest struct {
	Queue string          `json:"queue" binding:"required"`
	Data  json.RawMessage `json:"data" binding:"required"`
	JobID string          `json:"job_id"`
}

// CreateJob handles POST /api/v1/jobs.
// Enqueues a job and returns its id; processing happens asynchronously.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	var (
		jobID string
		err   error
	)
	if req.JobID != "" {
		jobID, err = h.queue.EnqueueWithID(c.Request.Context(), req.Queue, req.JobID, req.Data)
	} else {
		jobID, err = h.queue.Enqueue(c.Request.Context(), req.Queue, req.Data)
	}
	if err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("queue", req.Queue),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"queue":  req.Queue,
		"status": jobqueue.StatusQueued,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id.
// Returns the current job record read from the shared store.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobqueue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// QueueStats handles GET /api/v1/queues/:queue/stats.
// Queue length is authoritative; the job counters only cover work seen
// by this instance.
func (h *JobHandler) QueueStats(c *gin.Context) {
	queue := c.Param("queue")

	stats, err := h.queue.Stats(c.Request.Context(), queue)
	if err != nil {
		h.logger.Error("Failed to get queue stats",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get queue stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
