package worker

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pisopatrol/internal/amqp"
	"pisopatrol/internal/core"
	"pisopatrol/internal/sheets/memory"
)

type stubLoader struct {
	txs []core.Transaction
	err error
}

func (s *stubLoader) LoadLedger(context.Context) ([]core.Transaction, error) {
	return s.txs, s.err
}

func TestHandleExportSync(t *testing.T) {
	loader := &stubLoader{txs: []core.Transaction{
		{
			Date:     core.NewDate(2024, 4, 3),
			Amount:   core.Money{Cents: 45000},
			Category: "Groceries",
			Type:     core.Expense,
			Account:  "Cash",
		},
	}}
	appender := memory.NewAppender()
	w := NewExportWorker(loader, appender)

	if err := w.HandleExportSync(context.Background(), amqp.NewExportSyncMessage("import", 1)); err != nil {
		t.Fatalf("HandleExportSync() error: %v", err)
	}

	rows := appender.Rows()
	if len(rows) != 2 {
		t.Fatalf("appended %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "Date" {
		t.Errorf("first row = %v, want header", rows[0])
	}
	want := []string{"2024-04-03", "450.00", "Groceries", "", "Expense", "Cash"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row = %v, want %v", rows[1], want)
	}
}

func TestHandleExportSyncEmptyLedgerSkips(t *testing.T) {
	appender := memory.NewAppender()
	w := NewExportWorker(&stubLoader{}, appender)
	if err := w.HandleExportSync(context.Background(), amqp.NewExportSyncMessage("manual", 0)); err != nil {
		t.Fatalf("HandleExportSync() error: %v", err)
	}
	if len(appender.Rows()) != 0 {
		t.Error("empty ledger should not touch the sheet")
	}
}

func TestHandleExportSyncStorageError(t *testing.T) {
	w := NewExportWorker(&stubLoader{err: errors.New("db locked")}, memory.NewAppender())
	if err := w.HandleExportSync(context.Background(), amqp.NewExportSyncMessage("manual", 0)); err == nil {
		t.Error("storage failure should propagate for requeue")
	}
}
