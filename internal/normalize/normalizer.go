// Package normalize applies a confirmed field mapping to a raw table,
// coercing types and filling defaults to produce the canonical ledger.
// Row-level failures are collected, never fatal to the batch.
package normalize

import (
	"strings"
	"time"

	"pisopatrol/internal/core"
	"pisopatrol/internal/mapping"
)

// dateLayouts are tried in order. Ambiguous numeric forms are read
// month-first, matching the import behavior users already rely on.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var incomeWords = []string{"income", "salary", "wage", "wages", "benefits", "earnings", "deposit", "refund"}
var stashWords = []string{"stash", "saving", "savings"}

// Result is a partial ledger plus every rejected row in input order.
type Result struct {
	Ledger *core.Ledger
	Errors []core.RowError
	// Total is the number of raw rows examined.
	Total int
}

// Run normalizes table under m. goalNames extends the recognized category
// set and lets source-declared Stash rows bind to an existing goal.
//
// Deterministic: equal table and mapping yield an identical ledger and
// identical error ordering. Returns core.ErrMappingIncomplete without
// touching rows if Date or Amount is unbound, and core.ErrEmptyLedger
// when no row survives.
func Run(table core.RawTable, m mapping.FieldMapping, goalNames []string) (Result, error) {
	res := Result{Total: len(table.Rows)}
	if err := m.Validate(); err != nil {
		return res, err
	}

	col := func(field string) int {
		src, ok := m.Source(field)
		if !ok {
			return -1
		}
		return table.ColumnIndex(src)
	}
	dateCol := col(mapping.FieldDate)
	amountCol := col(mapping.FieldAmount)
	categoryCol := col(mapping.FieldCategory)
	notesCol := col(mapping.FieldNotes)
	typeCol := col(mapping.FieldType)
	accountCol := col(mapping.FieldAccount)
	if dateCol < 0 || amountCol < 0 {
		// Bound to a column the table does not actually have.
		return res, core.ErrMappingIncomplete
	}

	txs := make([]core.Transaction, 0, len(table.Rows))
	for i := range table.Rows {
		rawDate := table.Cell(i, dateCol)
		date, err := parseDate(rawDate)
		if err != nil {
			res.Errors = append(res.Errors, core.RowError{Row: i, Field: mapping.FieldDate, Value: rawDate, Err: core.ErrMissingDate})
			continue
		}

		rawAmount := table.Cell(i, amountCol)
		cents, _, err := core.ParseAmount(rawAmount)
		if err != nil {
			res.Errors = append(res.Errors, core.RowError{Row: i, Field: mapping.FieldAmount, Value: rawAmount, Err: core.ErrInvalidAmount})
			continue
		}

		category := core.CanonicalCategory(table.Cell(i, categoryCol), goalNames)

		// No type column mapped: every row defaults to Expense. The sign on
		// the amount is discarded either way; it never encodes direction
		// in the canonical ledger.
		typ := core.Expense
		if typeCol >= 0 {
			typ = parseType(table.Cell(i, typeCol))
		}

		goal := ""
		if typ == core.Stash {
			goal = matchGoal(category, goalNames)
			if goal == "" {
				// A stash row without a declared goal cannot be represented;
				// keep the row as an expense pending reclassification.
				typ = core.Expense
			}
		}

		account := strings.TrimSpace(table.Cell(i, accountCol))
		if account == "" {
			account = core.DefaultAccount
		}

		txs = append(txs, core.Transaction{
			Date:     date,
			Amount:   core.Money{Cents: cents},
			Category: category,
			Notes:    strings.TrimSpace(table.Cell(i, notesCol)),
			Type:     typ,
			Account:  account,
			Goal:     goal,
		})
	}

	if len(txs) == 0 {
		return res, core.ErrEmptyLedger
	}
	res.Ledger = core.NewLedger(txs)
	return res, nil
}

func parseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.ErrMissingDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, core.ErrMissingDate
}

// parseType maps a raw type cell to a transaction type. Unknown or empty
// values default to Expense; the import path never fails on type.
func parseType(s string) core.TxType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return core.Expense
	}
	for _, w := range incomeWords {
		if strings.Contains(s, w) {
			return core.Income
		}
	}
	for _, w := range stashWords {
		if strings.Contains(s, w) {
			return core.Stash
		}
	}
	return core.Expense
}

func matchGoal(category string, goalNames []string) string {
	for _, g := range goalNames {
		if strings.EqualFold(category, g) {
			return g
		}
	}
	return ""
}
