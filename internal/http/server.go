// Package http exposes the import, ledger, goal, metrics and cohort
// operations as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"pisopatrol/internal/config"
	"pisopatrol/internal/core"
	applog "pisopatrol/internal/log"
	"pisopatrol/internal/mapping"
	"pisopatrol/internal/session"
)

// ExportPublisher nudges the sync worker after a ledger change.
// Satisfied by the AMQP client.
type ExportPublisher interface {
	PublishExportSync(ctx context.Context, trigger string, rows int) error
}

// Persister stores the ledger and goals across restarts. Satisfied by
// the SQLite repository.
type Persister interface {
	ReplaceLedger(ctx context.Context, txs []core.Transaction) error
	SaveGoal(ctx context.Context, g core.Goal) error
	DeleteGoal(ctx context.Context, name string) error
}

// pendingImport is a previewed table waiting for mapping confirmation.
type pendingImport struct {
	table   core.RawTable
	mapping mapping.FieldMapping
}

type Server struct {
	httpServer  *http.Server
	session     *session.Session
	cfg         *config.Config
	store       Persister       // optional
	publisher   ExportPublisher // optional
	pending     *lruCache[pendingImport]
	logger      *applog.Logger
	janitorStop chan struct{}
}

// NewServer wires the API. store and publisher may be nil; the server
// then runs purely in memory and skips export notifications.
func NewServer(cfg *config.Config, sess *session.Session, store Persister, publisher ExportPublisher, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		session:     sess,
		cfg:         cfg,
		store:       store,
		publisher:   publisher,
		pending:     newLRUCache[pendingImport](64, 15*time.Minute),
		janitorStop: make(chan struct{}),
		logger:      logger.WithComponent(applog.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/imports", s.withCommon(s.handleImportPreview))
	mux.HandleFunc("/imports/", s.withCommon(s.handleImportSubpath))

	mux.HandleFunc("/ledger", s.withCommon(s.handleLedger))
	mux.HandleFunc("/ledger/reclassify", s.withCommon(s.handleReclassify))
	mux.HandleFunc("/ledger/append", s.withCommon(s.handleAppend))
	mux.HandleFunc("/ledger/export.csv", s.withCommon(s.handleExportCSV))

	mux.HandleFunc("/goals", s.withCommon(s.handleGoals))
	mux.HandleFunc("/goals/", s.withCommon(s.handleGoalByName))

	mux.HandleFunc("/metrics/summary", s.withCommon(s.handleSummary))
	mux.HandleFunc("/metrics/balance", s.withCommon(s.handleBalance))
	mux.HandleFunc("/metrics/aggregates", s.withCommon(s.handleAggregates))
	mux.HandleFunc("/metrics/mom", s.withCommon(s.handleMoM))
	mux.HandleFunc("/metrics/pace", s.withCommon(s.handlePace))
	mux.HandleFunc("/metrics/goals", s.withCommon(s.handleGoalMetrics))
	mux.HandleFunc("/metrics/habits", s.withCommon(s.handleHabits))

	mux.HandleFunc("/cohorts", s.withCommon(s.handleCohorts))

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.cleanupPending()
	return s
}

// cleanupPending evicts abandoned import previews in the background
// until Shutdown closes the stop channel.
func (s *Server) cleanupPending() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			if removed := s.pending.CleanExpired(); removed > 0 {
				s.logger.Debug("evicted expired imports", "count", removed)
			}
		}
	}
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down http server", applog.FieldOperation, applog.OpShutdown)
	close(s.janitorStop)
	return s.httpServer.Shutdown(ctx)
}

// withCommon adds security headers and request logging around a
// handler.
func (s *Server) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		next(w, r)
		s.logger.InfoContext(r.Context(), "request handled",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// persistAndNotify saves the current ledger snapshot and nudges the
// export worker. Both sides are optional and failures are logged, not
// surfaced: the in-memory session stays the source of truth.
func (s *Server) persistAndNotify(ctx context.Context, trigger string) {
	snapshot := s.session.Snapshot()
	if s.store != nil {
		if err := s.store.ReplaceLedger(ctx, snapshot); err != nil {
			s.logger.ErrorContext(ctx, "persist ledger failed", applog.FieldError, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishExportSync(ctx, trigger, len(snapshot)); err != nil {
			s.logger.ErrorContext(ctx, "publish export sync failed", applog.FieldError, err, applog.FieldTrigger, trigger)
		}
	}
}
