// Package worker pushes the persisted ledger to the export spreadsheet
// in response to AMQP sync requests.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pisopatrol/internal/amqp"
	"pisopatrol/internal/core"
	"pisopatrol/internal/export"
	"pisopatrol/internal/sheets"
)

// LedgerLoader reads the persisted ledger. Satisfied by the SQLite
// repository.
type LedgerLoader interface {
	LoadLedger(ctx context.Context) ([]core.Transaction, error)
}

// ExportWorker rewrites the export sheet from storage. The sheet always
// mirrors the full ledger; the message is only a nudge.
type ExportWorker struct {
	storage  LedgerLoader
	appender sheets.RowAppender
}

func NewExportWorker(storage LedgerLoader, appender sheets.RowAppender) *ExportWorker {
	return &ExportWorker{storage: storage, appender: appender}
}

// HandleExportSync processes one sync request: load the ledger, render
// canonical rows, append them with a header to the sheet.
func (w *ExportWorker) HandleExportSync(ctx context.Context, msg *amqp.ExportSyncMessage) error {
	slog.InfoContext(ctx, "processing export sync", "trigger", msg.Trigger, "rows", msg.Rows)

	txs, err := w.storage.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("load ledger from storage: %w", err)
	}
	if len(txs) == 0 {
		slog.InfoContext(ctx, "ledger empty, nothing to export")
		return nil
	}

	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, export.Header)
	for _, tx := range txs {
		rows = append(rows, export.Row(tx))
	}

	ref, err := w.appender.AppendRows(ctx, rows)
	if err != nil {
		return fmt.Errorf("append to export sheet: %w", err)
	}

	slog.InfoContext(ctx, "ledger exported", "rows", len(txs), "range", ref)
	return nil
}

// StartupSync exports whatever is in storage once, catching up on any
// requests missed while the worker was down.
func (w *ExportWorker) StartupSync(ctx context.Context) error {
	return w.HandleExportSync(ctx, amqp.NewExportSyncMessage("startup", 0))
}
