package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"ledger/internal/metrics"
)

// MiddlewareConfig wires a Limiter into an HTTP handler chain.
type MiddlewareConfig struct {
	Limiter Limiter
	// KeyFunc resolves the caller identity; an empty result falls back to GlobalKey.
	KeyFunc func(*http.Request) string
	// OnLimit writes the rejection response.
	OnLimit func(http.ResponseWriter, *http.Request, Decision)
	// OnError writes the response when the quota backend fails or the
	// request context ends before a decision.
	OnError func(http.ResponseWriter, *http.Request, error)
	// Skip exempts requests (probes) from the quota.
	Skip    func(*http.Request) bool
	Metrics metrics.Collector
}

// Middleware creates HTTP middleware for rate limiting. Rejected and failed
// requests never reach next.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(*http.Request) string { return GlobalKey }
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, r *http.Request, d Decision) {
			http.Error(w, "Too many requests, please try again later.", http.StatusTooManyRequests)
		}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			if key == "" {
				key = GlobalKey
			}

			d, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				// A caller that hung up is not a backend failure.
				if r.Context().Err() == nil {
					cfg.Metrics.RecordLimiterError()
				}
				cfg.OnError(w, r, err)
				return
			}
			cfg.Metrics.RecordAdmission(d.Allowed)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.ResetAfter)))
				cfg.OnLimit(w, r, d)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
