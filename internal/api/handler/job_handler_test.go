package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rohit-kaushik45/bullreckon/internal/jobqueue"
	"github.com/Rohit-kaushik45/bullreckon/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory jobqueue.Store for handler tests
type memStore struct {
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		kv:    make(map[string]string),
		lists: make(map[string][]string),
	}
}

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.kv[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *memStore) LPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.lists[key] = append([]string{v}, s.lists[key]...)
	}
	return nil
}

func (s *memStore) RPop(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[key]
	if len(list) == 0 {
		return "", redis.ErrNotFound
	}
	v := list[len(list)-1]
	s.lists[key] = list[:len(list)-1]
	return v, nil
}

func (s *memStore) BRPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	return s.RPop(ctx, key)
}

func (s *memStore) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJobTestRouter() (*gin.Engine, *jobqueue.Manager) {
	gin.SetMode(gin.TestMode)

	manager := jobqueue.NewManager(&jobqueue.Config{
		Store:  newMemStore(),
		Logger: testLogger(),
	})

	h := NewJobHandler(&Dependencies{
		Logger: testLogger(),
		Queue:  manager,
	})

	r := gin.New()
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs/:job_id", h.GetJob)
	r.GET("/api/v1/queues/:queue/stats", h.QueueStats)
	return r, manager
}

func TestCreateJob(t *testing.T) {
	r, manager := newJobTestRouter()

	body := `{"queue":"orders","data":{"symbol":"AAPL","qty":10}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobID, _ := resp["job_id"].(string)
	assert.True(t, strings.HasPrefix(jobID, "orders_"))
	assert.Equal(t, "queued", resp["status"])

	job, err := manager.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusQueued, job.Status)
}

func TestCreateJobWithExplicitID(t *testing.T) {
	r, manager := newJobTestRouter()

	body := `{"queue":"orders","job_id":"orders_custom","data":{}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	_, err := manager.GetJob(context.Background(), "orders_custom")
	assert.NoError(t, err)
}

func TestCreateJobInvalidBody(t *testing.T) {
	r, _ := newJobTestRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing queue", `{"data":{}}`},
		{"missing data", `{"queue":"orders"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetJob(t *testing.T) {
	r, manager := newJobTestRouter()

	id, err := manager.EnqueueWithID(context.Background(), "orders", "orders_1", json.RawMessage(`{"symbol":"AAPL"}`))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var job jobqueue.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, id, job.ID)
	assert.Equal(t, jobqueue.StatusQueued, job.Status)
}

func TestGetJobNotFound(t *testing.T) {
	r, _ := newJobTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing_1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueStats(t *testing.T) {
	r, manager := newJobTestRouter()

	_, err := manager.EnqueueWithID(context.Background(), "orders", "orders_1", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = manager.EnqueueWithID(context.Background(), "orders", "orders_2", json.RawMessage(`{}`))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queues/orders/stats", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats jobqueue.QueueStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.QueueLength)
}
