package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"expensebook/internal/amqp"
	"expensebook/internal/cli"
	"expensebook/internal/config"
	"expensebook/internal/log"
	gsheet "expensebook/internal/sheets/google"
	"expensebook/internal/storage"
	"expensebook/internal/worker"
)

func main() {
	// Load .env file for local development
	if err := cli.LoadEnvFile(); err != nil {
		slog.Warn("Ignoring .env file", "error", err)
	}

	cfg, err := cli.LoadConfig((*config.Config).ValidateMirror)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting expensebook-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// SQLite is the authoritative store; the sheet is its mirror
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sheets, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, sheets, cfg.SyncBatchSize)

	// Catch up on records written while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	poller := worker.NewPoller(syncWorker.ProcessPending, worker.PollerConfig{Interval: cfg.SyncInterval})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeMessages(gctx, syncWorker.HandleMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
