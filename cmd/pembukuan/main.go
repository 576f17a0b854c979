package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pembukuan/internal/amqp"
	"pembukuan/internal/config"
	apphttp "pembukuan/internal/http"
	"pembukuan/internal/storage"
	"pembukuan/internal/store"
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

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository for state snapshots and the mirror queue
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize AMQP client for publishing events (optional)
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, events queue only", "error", err)
		} else {
			defer events.Close()
		}
	}

	publisher := worker.NewEventPublisher(repo, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New(ctx, repo, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, st, cfg.MaxUploadBytes)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Publish export reminders when the configured interval elapses.
	if events != nil {
		go runReminderTicker(ctx, st, events)
	}

	// Graceful shutdown handling
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

	logger.Info("Starting pembukuan server", "port", cfg.Port, "db_path", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// runReminderTicker re-reads the settings every minute so interval changes
// take effect without a restart.
func runReminderTicker(ctx context.Context, st *store.Store, events *amqp.Client) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	lastReminder := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settings := st.Settings()
			if !settings.ReminderActive || settings.ReminderIntervalMinutes < 1 {
				continue
			}
			interval := time.Duration(settings.ReminderIntervalMinutes) * time.Minute
			if time.Since(lastReminder) < interval {
				continue
			}
			if err := events.PublishExportReminder(ctx, settings.ReminderIntervalMinutes); err != nil {
				slog.ErrorContext(ctx, "Export reminder publish failed", "error", err)
				continue
			}
			lastReminder = time.Now()
		}
	}
}
