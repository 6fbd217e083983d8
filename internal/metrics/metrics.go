// Package metrics defines the instrumentation points of the ledger service.
// Implementations export them to a backend; NoOpCollector discards them.
package metrics

import "time"

// Collector receives measurements from the HTTP layer, the rate limiter and
// the storage gateway.
type Collector interface {
	// HTTP
	RecordRequest(method, route string, status int, duration time.Duration)

	// Rate limiter
	RecordAdmission(allowed bool)
	RecordLimiterError()

	// Storage gateway
	RecordStorage(op string, outcome Outcome, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)

	// Events
	RecordEventPublished(kind string, success bool)
}

// Outcome classifies a storage call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNotFound Outcome = "not_found"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the store has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordRequest(method, route string, status int, duration time.Duration) {}

func (NoOpCollector) RecordAdmission(allowed bool) {}

func (NoOpCollector) RecordLimiterError() {}

func (NoOpCollector) RecordStorage(op string, outcome Outcome, duration time.Duration) {}

func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}

func (NoOpCollector) RecordEventPublished(kind string, success bool) {}
