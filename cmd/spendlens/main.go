package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendlens/internal/amqp"
	"spendlens/internal/auth"
	"spendlens/internal/config"
	apphttp "spendlens/internal/http"
	"spendlens/internal/llm"
	"spendlens/internal/log"
	"spendlens/internal/services"
	"spendlens/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(cfg.LogLevel)
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

	client, err := llm.NewClient(llm.Config{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.APIKey(),
		Model:     cfg.LLMModel,
		RateLimit: cfg.LLMRateLimit,
	})
	if err != nil {
		logger.Error("Failed to initialize LLM client", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}

	classifier := llm.NewClassifier(client, cfg.LLMRateLimit, log.ForComponent(logger, "llm"))
	defer classifier.Close()

	// The export queue is optional; the store is the source of truth.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Export queue unavailable, continuing without it", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	gate := auth.NewGate(repo, cfg.SessionTTL, log.ForComponent(logger, "auth"))
	expenseService := services.NewExpenseService(repo, publisher, log.ForComponent(logger, "expenses"))

	srv := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		SecureCookies: cfg.SecureCookies,
		RateLimitRPM:  cfg.RateLimitRPM,
		Logger:        log.ForComponent(logger, "http"),
	}, gate, classifier, expenseService)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = gate.RunSessionJanitor(ctx, time.Hour)
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting spendlens server",
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
		"export_queue", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
