// Package memory provides in-process implementations of the sheet
// ports for tests and offline development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pisopatrol/internal/core"
	ports "pisopatrol/internal/sheets"
)

// Source serves a fixed raw table.
type Source struct {
	table core.RawTable
}

var _ ports.TableSource = (*Source)(nil)

func NewSource(table core.RawTable) *Source {
	return &Source{table: table}
}

func (s *Source) Load(_ context.Context) (core.RawTable, error) {
	return s.table, nil
}

// Appender collects appended rows in memory.
type Appender struct {
	mu   sync.Mutex
	rows [][]string
}

var _ ports.RowAppender = (*Appender)(nil)

func NewAppender() *Appender {
	return &Appender{}
}

func (a *Appender) AppendRows(_ context.Context, rows [][]string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	first := len(a.rows) + 1
	a.rows = append(a.rows, rows...)
	return fmt.Sprintf("mem!A%d:F%d", first, len(a.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (a *Appender) Rows() [][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]string, len(a.rows))
	for i, r := range a.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
