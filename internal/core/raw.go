package core

import "strings"

// RawTable is a loosely-structured import: an arbitrary header row plus
// untyped cells. It exists only between loading and normalization.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// ColumnIndex finds the position of a header by exact name, then by
// trimmed case-insensitive comparison. Returns -1 when absent.
func (t RawTable) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	for i, h := range t.Headers {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the row is ragged.
func (t RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}
