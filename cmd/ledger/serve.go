package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	promcollector "ledger/internal/metrics/prometheus"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/services"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := promcollector.NewCollector("ledger")
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger, collector).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("storage unavailable, refusing to serve: %w", err)
	}

	var publisher services.EventPublisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Logger:   logger,
			Metrics:  collector,
		})
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			publisher = client
		}
	}

	limiter, stopLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		_ = result.Cleanup()
		return err
	}

	service := services.NewTransactionService(result.Repository, publisher, logger)
	server := apphttp.NewServer(apphttp.Config{
		Addr:         cfg.Addr(),
		Service:      service,
		Limiter:      limiter,
		RateLimitKey: apphttp.RateLimitKey(cfg.RateLimitKey),
		Logger:       logger,
		Metrics:      collector,
		Gatherer:     registry,
	})

	logger.Info("Starting ledger server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"rate_limit", fmt.Sprintf("%d/%s", cfg.RateLimitRequests, cfg.RateLimitWindow),
		"rate_limit_backend", cfg.RateLimitBackend,
		"events_enabled", publisher != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, shutdownTimeout)
	})
	runErr := g.Wait()

	shutdownErr := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) error {
		stopLimiter()
		return service.Close()
	})
	return errors.Join(runErr, shutdownErr)
}

// newLimiter builds the limiter selected by RATE_LIMIT_BACKEND and a func
// that releases it.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	rlCfg := ratelimit.Config{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
	}

	switch cfg.RateLimitBackend {
	case "redis":
		rl, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			KeyPrefix: "ledger:ratelimit:",
		}, rlCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rate limit store: %w", err)
		}
		if err := rl.Ping(ctx); err != nil {
			rl.Close()
			return nil, nil, fmt.Errorf("ping rate limit store: %w", err)
		}
		return rl, rl.Close, nil
	default:
		rl := ratelimit.NewMemoryLimiter(rlCfg)
		return rl, rl.Stop, nil
	}
}
