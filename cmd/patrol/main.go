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

	"pisopatrol/internal/amqp"
	"pisopatrol/internal/config"
	"pisopatrol/internal/core"
	apphttp "pisopatrol/internal/http"
	applog "pisopatrol/internal/log"
	"pisopatrol/internal/session"
	"pisopatrol/internal/storage"
)

func main() {
	// Load .env for local development; ignore errors in production
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	slog.SetDefault(logger.Logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	sess := session.New()

	// SQLite keeps the session across restarts.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	restoreSession(logger, sess, repo)

	// AMQP is optional; without it the export worker is simply never
	// notified.
	var publisher apphttp.ExportPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, export notifications disabled", applog.FieldError, err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	srv := apphttp.NewServer(cfg, sess, repo, publisher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting patrol server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}

// restoreSession reloads the persisted ledger and goals so a restart
// does not lose the working session.
func restoreSession(logger *applog.Logger, sess *session.Session, repo *storage.SQLiteRepository) {
	ctx := context.Background()

	goals, err := repo.ListGoals(ctx)
	if err != nil {
		logger.Warn("failed to load stored goals", applog.FieldError, err)
	}
	for _, g := range goals {
		if err := sess.CreateGoal(g); err != nil {
			logger.Warn("skipping stored goal", applog.FieldGoal, g.Name, applog.FieldError, err)
		}
	}

	txs, err := repo.LoadLedger(ctx)
	if err != nil {
		logger.Warn("failed to load stored ledger", applog.FieldError, err)
		return
	}
	if len(txs) > 0 {
		sess.SetLedger(core.NewLedger(txs))
		logger.Info("session restored", applog.FieldRowCount, len(txs), "goals", len(goals))
	}
}
