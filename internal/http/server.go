// Package http exposes the transaction API over net/http.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	maxHeaderBytes      = 64 << 10
	defaultReadyTimeout = 2 * time.Second
)

// RateLimitKey selects how callers are grouped into quota buckets.
type RateLimitKey string

const (
	RateLimitByIP     RateLimitKey = "ip"
	RateLimitByGlobal RateLimitKey = "global"
)

// Config wires the server's collaborators. Service and Limiter are required.
type Config struct {
	Addr         string
	Service      TransactionService
	Limiter      ratelimit.Limiter
	RateLimitKey RateLimitKey
	Logger       *log.Logger
	Metrics      metrics.Collector
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Detector *security.Detector
	Headers  *security.HeadersConfig
}

type Server struct {
	http.Server
	service      TransactionService
	logger       *log.Logger
	mux          *http.ServeMux
	detector     *security.Detector
	tracer       *trace.Middleware
	readyTimeout time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Detector == nil {
		cfg.Detector = security.NewDetector()
	}
	headers := security.DefaultHeadersConfig()
	if cfg.Headers != nil {
		headers = *cfg.Headers
	}

	s := &Server{
		service:      cfg.Service,
		logger:       cfg.Logger.WithComponent(log.ComponentHTTP),
		mux:          http.NewServeMux(),
		detector:     cfg.Detector,
		readyTimeout: defaultReadyTimeout,
	}

	s.mux.HandleFunc("GET /{$}", s.handleWelcome)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /api/transactions/{userId}", s.handleListTransactions)
	s.mux.HandleFunc("GET /api/transactions/summary/{userId}", s.handleSummary)
	s.mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	s.mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	s.mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	limited := ratelimit.Middleware(ratelimit.MiddlewareConfig{
		Limiter: cfg.Limiter,
		KeyFunc: s.rateLimitKeyFunc(cfg.RateLimitKey),
		OnLimit: func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				log.FieldErrorType, log.ErrorTypeRateLimit)
			writeMessage(w, http.StatusTooManyRequests, MsgTooManyRequests)
		},
		OnError: func(w http.ResponseWriter, r *http.Request, err error) {
			if r.Context().Err() != nil {
				s.logger.DebugContext(r.Context(), "Client closed request before admission", log.FieldError, err)
				w.WriteHeader(StatusClientClosedRequest)
				return
			}
			s.logger.ErrorContext(r.Context(), "Rate limiter unavailable",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeInternal)
			writeMessage(w, http.StatusInternalServerError, MsgInternal)
		},
		Skip:    isProbe,
		Metrics: cfg.Metrics,
	})(s.mux)

	s.tracer = trace.NewMiddleware(trace.Config{
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
		ExtractIP: s.detector.ExtractClientIP,
		Route:     s.routeOf,
	})

	var handler http.Handler = limited
	handler = s.detector.Middleware(cfg.Logger)(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		ReadTimeout:    defaultReadTimeout,
		WriteTimeout:   defaultWriteTimeout,
		IdleTimeout:    defaultIdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
	return s
}

// routeOf returns the mux pattern that will serve r.
func (s *Server) routeOf(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	return pattern
}

func (s *Server) rateLimitKeyFunc(key RateLimitKey) func(*http.Request) string {
	if key == RateLimitByGlobal {
		return func(*http.Request) string { return ratelimit.GlobalKey }
	}
	return s.detector.ExtractClientIP
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr, log.FieldOperation, log.OpStartup)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Stats exposes request counters from the trace middleware.
func (s *Server) Stats() trace.Stats {
	return s.tracer.Stats()
}
