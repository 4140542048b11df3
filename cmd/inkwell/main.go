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

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-app/inkwell/internal/app"
	"github.com/inkwell-app/inkwell/internal/auth"
	jobmetrics "github.com/inkwell-app/inkwell/internal/jobs"
	"github.com/inkwell-app/inkwell/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	service := auth.NewService(stores.Credentials, stores.Sessions, logger, metrics)
	handler := auth.NewHandler(logger, service, auth.CookieConfig{
		Name:   cfg.SessionCookie,
		MaxAge: cfg.SessionTTL,
		Secure: cfg.IsProduction(),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		AuthHandler: handler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.SessionSweepInterval > 0 {
		sweeper := auth.NewSweeper(auth.SweeperConfig{
			Store:    stores.Sessions,
			Interval: cfg.SessionSweepInterval,
			Logger:   logger,
			Metrics:  jobmetrics.NewMetrics(metrics.Registerer()),
		})
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	} else {
		logger.Info("in-process session sweep disabled")
	}

	return g.Wait()
}
