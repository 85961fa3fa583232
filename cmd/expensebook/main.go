package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensebook/internal/auth"
	"expensebook/internal/backend"
	"expensebook/internal/cli"
	apphttp "expensebook/internal/http"
	"expensebook/internal/log"
	"expensebook/internal/services"
)

const (
	cacheCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		slog.Warn("Ignoring .env file", "error", err)
	}

	cfg, err := cli.LoadConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	dashboards := services.NewDashboardService(res.Records, services.DashboardOptions{
		TrailingDays: cfg.TrailingDays,
		CacheSize:    cfg.DashboardCacheSize,
	})
	expenses := services.NewExpenseService(res.Records, res.Publisher)
	authSvc := auth.NewService(res.Credentials, expenses, auth.Options{
		SessionTTL:       cfg.SessionTTL,
		Logger:           logger.WithComponent(log.ComponentAuth).Logger,
		OnAccountDeleted: dashboards.Invalidate,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               authSvc,
		Expenses:           expenses,
		Dashboards:         dashboards,
		Health:             res.Health,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB
	srv.StartBackground(cacheCleanupInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expensebook server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
