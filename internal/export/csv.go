// Package export renders a ledger in the canonical interchange layout:
// one header row, one row per transaction, chronological order.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"pisopatrol/internal/core"
)

// Header is the canonical column order. Re-importing an exported file
// maps every column exactly.
var Header = []string{"Date", "Amount", "Category", "Notes", "Type", "Account"}

// Row renders one transaction as canonical strings: ISO date and a
// two-decimal amount with no currency symbol.
func Row(tx core.Transaction) []string {
	return []string{
		tx.Date.String(),
		tx.Amount.Decimal(),
		tx.Category,
		tx.Notes,
		string(tx.Type),
		tx.Account,
	}
}

// WriteCSV streams the ledger to w as canonical CSV.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, tx := range txs {
		if err := cw.Write(Row(tx)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// MarshalCSV renders the ledger to a byte slice.
func MarshalCSV(txs []core.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, txs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
