package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pisopatrol/internal/amqp"
	"pisopatrol/internal/config"
	applog "pisopatrol/internal/log"
	gsheet "pisopatrol/internal/sheets/google"
	"pisopatrol/internal/storage"
	"pisopatrol/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	slog.SetDefault(logger.Logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.ExportSpreadsheetID == "" {
		logger.Error("EXPORT_SPREADSHEET_ID is required for the export worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appender, err := gsheet.NewAppenderFromEnv(ctx)
	if err != nil {
		logger.Error("failed to initialize sheets appender", applog.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, appender)

	// Catch up on anything missed while the worker was down.
	if err := exportWorker.StartupSync(ctx); err != nil {
		logger.Error("startup sync failed", applog.FieldError, err, applog.FieldOperation, applog.OpStartup)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeExportSyncWithRetry(gctx, cfg.AMQPURL, exportWorker.HandleExportSync)
	})

	// Periodic sync covers dropped messages.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := exportWorker.HandleExportSync(gctx, amqp.NewExportSyncMessage("periodic", 0)); err != nil {
					logger.Error("periodic sync failed", applog.FieldError, err, applog.FieldOperation, applog.OpSync)
				}
			}
		}
	})

	logger.Info("patrol-worker running", "queue", cfg.AMQPQueue, "interval", cfg.SyncInterval.String())
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully")
}
