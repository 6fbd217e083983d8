package backend

import (
	"context"
	"fmt"

	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics metrics.Collector
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger, collector metrics.Collector) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: collector,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		repo storage.Repository
		err  error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		repo, err = f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		repo = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	guard := storage.NewGuarded(repo, config.GuardConfig(), f.metrics, f.logger)
	return &BackendResult{
		Repository: guard,
		Guard:      guard,
		Cleanup:    guard.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (storage.Repository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", log.FieldBackend, SQLiteBackend, "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (storage.Repository, error) {
	repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}
	f.logger.Info("Initialized Postgres backend", log.FieldBackend, PostgresBackend)
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend() storage.Repository {
	f.logger.Warn("Initialized memory backend; data is lost on restart", log.FieldBackend, MemoryBackend)
	return storage.NewMemoryRepository()
}
