package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/log"
	"ledger/internal/metrics"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type requestRecorder struct {
	metrics.NoOpCollector
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *requestRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{method, route, status})
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	var seen string
	m := NewMiddleware(Config{})
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/u1", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestMiddlewarePropagatesIncomingRequestID(t *testing.T) {
	m := NewMiddleware(Config{})
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "edge-1234")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "edge-1234", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id\nwith newline", rec.Header().Get(RequestIDHeader))
}

func TestMiddlewareRecordsMetricsWithRoute(t *testing.T) {
	recorder := &requestRecorder{}
	m := NewMiddleware(Config{
		Metrics: recorder,
		Route: func(r *http.Request) string {
			if strings.HasPrefix(r.URL.Path, "/transactions/") {
				return "GET /transactions/{user_id}"
			}
			return ""
		},
	})
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/transactions/u1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Len(t, recorder.requests, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "GET /transactions/{user_id}", http.StatusOK}, recorder.requests[0])
	assert.Equal(t, recordedRequest{http.MethodGet, UnmatchedRoute, http.StatusNotFound}, recorder.requests[1])
	assert.Equal(t, int64(2), m.Stats().TotalRequests)
	assert.Equal(t, int64(0), m.Stats().InFlight)
}

func TestMiddlewareLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentApp, Output: &buf, Format: "json"})
	m := NewMiddleware(Config{
		Logger:    logger,
		ExtractIP: func(*http.Request) string { return "203.0.113.7" },
	})
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, "HTTP request completed")
	assert.Contains(t, out, `"status_code":201`)
	assert.Contains(t, out, "203.0.113.7")
	assert.Contains(t, out, rec.Header().Get(RequestIDHeader))
}
