package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/inkwell-app/inkwell/internal/app"
	"github.com/inkwell-app/inkwell/internal/auth"
	jobmetrics "github.com/inkwell-app/inkwell/internal/jobs"
	"github.com/inkwell-app/inkwell/internal/observability"
	"github.com/inkwell-app/inkwell/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.SessionStore == app.StoreMemory {
		logger.Error("worker needs a shared session store", slog.String("session_store", cfg.SessionStore))
		os.Exit(1)
	}
	if cfg.RedisAddr == "" {
		logger.Error("worker needs REDIS_ADDR for the task queue")
		os.Exit(1)
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	sweeper := auth.NewSweeper(auth.SweeperConfig{
		Store:   stores.Sessions,
		Logger:  logger,
		Metrics: jobmetrics.NewMetrics(metrics.Registerer()),
	})
	sweepJob := jobs.NewSessionSweepJob(sweeper, logger)

	sweepTask, err := jobs.NewSessionSweepTask("cron")
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client := jobs.NewClient(redisOpts)
	if _, err := client.EnqueueSessionSweep(ctx, "startup"); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Warn("enqueue startup sweep", slog.Any("error", err))
	}
	if err := client.Close(); err != nil {
		logger.Warn("close queue client", slog.Any("error", err))
	}

	metricsServer := app.NewMetricsServer(cfg.WorkerMetricsAddr, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting metrics listener", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
