package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pembukuan/internal/amqp"
	"pembukuan/internal/config"
	"pembukuan/internal/mirror"
	"pembukuan/internal/storage"
	"pembukuan/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting pembukuan-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository to read the state snapshot and mirror queue
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize the spreadsheet mirror client (optional)
	var mirrorClient *mirror.Client
	if cfg.MirrorEnabled() {
		mirrorClient, err = mirror.NewClient(context.Background(), mirror.Config{
			SpreadsheetID:   cfg.MirrorSpreadsheetID,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize mirror client", "error", err)
			os.Exit(1)
		}
		logger.Info("Mirror client initialized", "spreadsheet_id", cfg.MirrorSpreadsheetID)
	} else {
		logger.Info("Mirroring disabled - no MIRROR_SPREADSHEET_ID provided")
	}

	// Initialize AMQP client for consuming events
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mirrorWorker *worker.MirrorWorker
	if mirrorClient != nil {
		mirrorWorker = worker.NewMirrorWorker(repo, mirrorClient, cfg.SweepBatchSize)

		// On startup, drain anything that was missed while the worker was down
		logger.Info("Performing startup mirror check...")
		if err := mirrorWorker.StartupCheck(ctx); err != nil {
			logger.Error("Failed startup mirror check", "error", err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Info("Skipping mirror operations - no mirror client available")
	}

	// Start message consumption
	go func() {
		onAccountChanged := func(msg *amqp.AccountChangedMessage) error {
			if mirrorWorker == nil {
				slog.InfoContext(ctx, "Account changed (mirroring disabled)",
					"account", msg.Name, "version", msg.Version)
				return nil
			}
			return mirrorWorker.HandleAccountChanged(ctx, msg)
		}
		onExportReminder := func(msg *amqp.ExportReminderMessage) error {
			if mirrorWorker == nil {
				slog.InfoContext(ctx, "Export reminder due",
					"interval_minutes", msg.IntervalMinutes, "timestamp", msg.Timestamp)
				return nil
			}
			return mirrorWorker.HandleExportReminder(ctx, msg)
		}
		if err := amqpClient.Consume(ctx, onAccountChanged, onExportReminder); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic sweep for any missed messages (only if mirroring is enabled)
	if mirrorWorker != nil {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := mirrorWorker.SweepPending(ctx); err != nil {
						logger.Error("Periodic mirror sweep failed", "error", err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping periodic sweep - no mirror worker available")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Give the worker time to finish the current sweep
	logger.Info("Shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
