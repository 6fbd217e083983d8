// Package trace assigns request IDs, attaches a request-scoped logger and
// records per-request logs and metrics.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ledger/internal/log"
	"ledger/internal/metrics"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	// UnmatchedRoute labels requests no route pattern matched.
	UnmatchedRoute = "unmatched"

	maxRequestIDLength = 128
)

// Config wires the middleware's collaborators. Only Logger is required.
type Config struct {
	Logger  *log.Logger
	Metrics metrics.Collector
	// ExtractIP returns the client address logged with each request.
	ExtractIP func(*http.Request) string
	// Route returns the matched route pattern, used as a low-cardinality
	// metrics label. An empty result is reported as UnmatchedRoute.
	Route func(*http.Request) string
}

// Middleware handles request tracing and logging
type Middleware struct {
	cfg     Config
	logger  *log.Logger
	metrics metrics.Collector

	totalRequests atomic.Int64
	inFlight      atomic.Int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(cfg Config) *Middleware {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}
	logger := cfg.Logger.WithComponent(log.ComponentTrace)
	return &Middleware{
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.totalRequests.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		requestID := requestIDFrom(r)
		w.Header().Set(RequestIDHeader, requestID)

		clientIP := ""
		if m.cfg.ExtractIP != nil {
			clientIP = m.cfg.ExtractIP(r)
		}
		route := ""
		if m.cfg.Route != nil {
			route = m.cfg.Route(r)
		}
		if route == "" {
			route = UnmatchedRoute
		}

		reqLogger := m.cfg.Logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = log.NewContext(ctx, reqLogger)
		r = r.WithContext(ctx)

		m.logger.DebugContext(ctx, "HTTP request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.metrics.RecordRequest(r.Method, route, rw.statusCode, duration)
		log.NewStructuredLogger(reqLogger).LogHTTPEnd(ctx, r, route, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// requestIDFrom reuses a sane incoming X-Request-ID or generates a new one.
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); validRequestID(id) {
		return id
	}
	return GenerateRequestID()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Stats is a point-in-time view of request counters.
type Stats struct {
	TotalRequests int64
	InFlight      int64
}

// Stats returns current counters
func (m *Middleware) Stats() Stats {
	return Stats{
		TotalRequests: m.totalRequests.Load(),
		InFlight:      m.inFlight.Load(),
	}
}
