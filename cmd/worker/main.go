// Package main is the entry point for the stockledger background worker.
// It relays outbox events to Redis and runs the scheduled maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/jobs"
	"stockledger/internal/infrastructure/observability"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "stockledger-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := run(*cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting stockledger worker", "storage", cfg.StorageDriver, "redis", cfg.RedisAddr)
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("memory storage is private to this process; the worker sees no API data")
	}

	storage, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()

	redisClient, err := events.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	metrics := observability.NewMetrics()
	if storage.Pool != nil {
		metrics.RegisterPool(storage.Pool.Stats)
	}
	services := app.NewServices(storage.Repos, app.Options{Metrics: metrics})

	tasks := jobs.New(jobs.Deps{
		Relay:        events.NewRelay(storage.Repos.Outbox, events.NewStreamSink(redisClient, cfg.EventsStream, cfg.EventsMaxLen), cfg.Worker.OutboxBatchSize),
		Idempotency:  storage.Repos.Idempotency,
		Reports:      services.Reports,
		Bins:         services.Bins,
		Reservations: services.Reservations,
		Metrics:      metrics,
		Logger:       log,
		ExpiryBatch:  cfg.Worker.ReservationBatch,
	})
	schedule, err := jobs.Schedule(cfg.Worker)
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Concurrency: cfg.Worker.Concurrency,
		Logger:      log,
		Handlers:    tasks.Handlers(),
		Cron:        schedule,
	})
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Infow("metrics listening", "addr", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
