package storage

import (
	"context"
	"errors"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/metrics"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("storage circuit open")
	// ErrTimeout is returned when a call exceeds the configured timeout.
	ErrTimeout = errors.New("storage operation timed out")
)

// GuardConfig tunes the Guarded wrapper.
type GuardConfig struct {
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// DefaultGuardConfig matches the STORAGE_TIMEOUT and BREAKER_* defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     5 * time.Second,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Guarded wraps a Repository with a per-call timeout and a circuit breaker.
// Not-found results and caller cancellations do not count as failures.
type Guarded struct {
	repo    Repository
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *log.Logger
}

var _ Repository = (*Guarded)(nil)

func NewGuarded(repo Repository, cfg GuardConfig, collector metrics.Collector, logger *log.Logger) *Guarded {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultGuardConfig().MaxFailures
	}
	logger = logger.WithComponent(log.ComponentStorage)

	g := &Guarded{
		repo:    repo,
		timeout: cfg.Timeout,
		metrics: collector,
		logger:  logger,
	}

	maxFailures := cfg.MaxFailures
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "storage",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			collector.RecordCircuitState(name, state)
		},
	})

	return g
}

// guard runs fn through the breaker with the configured timeout.
func guard[T any](g *Guarded, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	duration := time.Since(start)

	switch {
	case err == nil:
		g.metrics.RecordStorage(op, metrics.OutcomeSuccess, duration)
		return result.(T), nil
	case errors.Is(err, core.ErrNotFound):
		g.metrics.RecordStorage(op, metrics.OutcomeNotFound, duration)
		return zero, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.metrics.RecordStorage(op, metrics.OutcomeRejected, duration)
		g.logger.WarnContext(ctx, "circuit breaker open - request rejected", log.FieldOperation, op)
		return zero, ErrCircuitOpen
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		g.metrics.RecordStorage(op, metrics.OutcomeTimeout, duration)
		g.logger.WarnContext(ctx, "operation timeout",
			log.FieldOperation, op,
			"timeout", g.timeout,
			"elapsed", duration)
		return zero, errors.Join(ErrTimeout, err)
	default:
		g.metrics.RecordStorage(op, metrics.OutcomeError, duration)
		return zero, err
	}
}

func (g *Guarded) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	return guard(g, ctx, log.OpCreate, func(ctx context.Context) (core.Transaction, error) {
		return g.repo.Create(ctx, n)
	})
}

func (g *Guarded) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	return guard(g, ctx, log.OpList, func(ctx context.Context) ([]core.Transaction, error) {
		return g.repo.ListByUser(ctx, userID)
	})
}

func (g *Guarded) Update(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	return guard(g, ctx, log.OpUpdate, func(ctx context.Context) (core.Transaction, error) {
		return g.repo.Update(ctx, id, patch)
	})
}

func (g *Guarded) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	return guard(g, ctx, log.OpDelete, func(ctx context.Context) (core.Transaction, error) {
		return g.repo.Delete(ctx, id)
	})
}

func (g *Guarded) Summarize(ctx context.Context, userID string) (core.Summary, error) {
	return guard(g, ctx, log.OpSummarize, func(ctx context.Context) (core.Summary, error) {
		return g.repo.Summarize(ctx, userID)
	})
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (g *Guarded) Ping(ctx context.Context) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.repo.Ping(ctx)
}

// State reports the breaker state, for diagnostics.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) Close() error {
	return g.repo.Close()
}
