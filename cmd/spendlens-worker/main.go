package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendlens/internal/amqp"
	"spendlens/internal/config"
	"spendlens/internal/log"
	"spendlens/internal/sheets"
	gsheet "spendlens/internal/sheets/google"
	mem "spendlens/internal/sheets/memory"
	"spendlens/internal/storage"
	"spendlens/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(cfg.LogLevel)

	logger.Info("Starting spendlens-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var appender sheets.RowAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		appender = mem.New()
		logger.Info("No GOOGLE_SPREADSHEET_ID set, exporting to in-memory ledger")
	}

	exportWorker := worker.NewExportWorker(repo, appender, log.ForComponent(logger, "export"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqp.ConsumeForever(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, func(msg *amqp.ExpenseEventMessage) error {
			return exportWorker.HandleEvent(ctx, msg)
		})
	})

	g.Go(func() error {
		return exportWorker.RunResyncLoop(ctx, cfg.ResyncInterval)
	})

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"resync_interval", cfg.ResyncInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
