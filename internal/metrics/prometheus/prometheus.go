package prometheus

import (
	"strconv"
	"time"

	"ledger/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements metrics.Collector for Prometheus.
type Collector struct {
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	admissions      *prometheus.CounterVec
	limiterErrors   prometheus.Counter
	storageOps      *prometheus.CounterVec
	storageLatency  *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

var _ metrics.Collector = (*Collector)(nil)

// NewCollector creates a collector whose metric names share namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"route"},
		),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limiter decisions by result",
			},
			[]string{"result"},
		),
		limiterErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_errors_total",
				Help:      "Rate limiter backend failures",
			},
		),
		storageOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Storage gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		storageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Storage gateway latency by operation",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"operation"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"name"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Transaction events handed to the broker by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
}

// Register registers all metrics with the given registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.requests,
		c.requestLatency,
		c.admissions,
		c.limiterErrors,
		c.storageOps,
		c.storageLatency,
		c.circuitState,
		c.circuitOpens,
		c.eventsPublished,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) RecordAdmission(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	c.admissions.WithLabelValues(result).Inc()
}

func (c *Collector) RecordLimiterError() {
	c.limiterErrors.Inc()
}

func (c *Collector) RecordStorage(op string, outcome metrics.Outcome, duration time.Duration) {
	c.storageOps.WithLabelValues(op, string(outcome)).Inc()
	c.storageLatency.WithLabelValues(op).Observe(duration.Seconds())
}

func (c *Collector) RecordCircuitState(name string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(name).Set(float64(state))
	if state == metrics.CircuitOpen {
		c.circuitOpens.WithLabelValues(name).Inc()
	}
}

func (c *Collector) RecordEventPublished(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.eventsPublished.WithLabelValues(kind, status).Inc()
}
