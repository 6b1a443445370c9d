// Command worker runs the background task worker: it consumes queued
// jobs, schedules the periodic story refresh, and answers health probes
// via the -health flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gs-labs/stories-service/internal/config"
	"github.com/gs-labs/stories-service/internal/jobs"
	"github.com/gs-labs/stories-service/internal/platform/logger"
	"github.com/gs-labs/stories-service/internal/platform/postgres"
	"github.com/gs-labs/stories-service/internal/queue"
	"github.com/gs-labs/stories-service/internal/service"
	"github.com/gs-labs/stories-service/internal/store"
)

func main() {
	healthCheck := flag.Bool("health", false, "probe worker health and exit with its status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.App.LogLevel)

	client, err := queue.NewClient(cfg.Task.BrokerURL)
	if err != nil {
		log.Error("failed to create broker client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	q := queue.New(client, cfg.App.Name, cfg.Task.QueueName, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *healthCheck {
		os.Exit(queue.CheckHealth(ctx, q, log))
	}

	if err := run(ctx, cfg, q, log); err != nil {
		log.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, q *queue.Queue, log *slog.Logger) error {
	sessions := store.NewSessionManager(log)

	svc := service.NewStoryService(sessions, func(db store.DBTX) service.StoryRepository {
		return postgres.NewStoryRepository(db, log)
	}, log)

	runtimeTimeout := time.Duration(cfg.Task.RuntimeTimeoutSeconds) * time.Second
	deps := jobs.NewDeps(svc, q, runtimeTimeout, log)

	worker := queue.NewWorker(q, queue.WorkerConfig{Count: cfg.Task.WorkerCount}, log)
	worker.OnStartup = func(ctx context.Context) error {
		err := sessions.Init(ctx, store.PoolConfig{
			URL:            cfg.Database.URL,
			MinConns:       cfg.Database.PoolMinConns,
			MaxConns:       cfg.Database.PoolMaxConns,
			AcquireTimeout: time.Duration(cfg.Database.AcquireTimeoutSeconds) * time.Second,
			PrePing:        cfg.Database.PrePing,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		db, err := sessions.DB()
		if err != nil {
			return err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}

		log.Info("worker dependencies ready", slog.String("app", cfg.App.Name))
		return nil
	}
	worker.OnShutdown = func(ctx context.Context) error {
		return sessions.Close()
	}

	worker.Register(jobs.JobRefreshAllStories, deps.RefreshAllStories)
	worker.Register(jobs.JobRefreshStory, deps.RefreshStory)

	scheduler := queue.NewScheduler(q, log)
	if err := scheduler.Add(queue.CronJob{
		Spec:    cfg.Task.RefreshStorySchedule,
		Name:    jobs.JobRefreshAllStories,
		Timeout: runtimeTimeout,
	}); err != nil {
		return err
	}
	scheduler.Start()

	err := worker.Run(ctx)

	<-scheduler.Stop().Done()
	if closeErr := q.Close(); closeErr != nil {
		log.Warn("failed to close broker connection", slog.String("error", closeErr.Error()))
	}
	return err
}
