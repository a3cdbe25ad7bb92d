package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Income  TxType = "Income"
	Expense TxType = "Expense"
	Stash   TxType = "Stash"
)

// CategoryMisc is the fallback for empty or unrecognized categories.
const CategoryMisc = "Misc"

// DefaultAccount is used when no account column is mapped or the cell is empty.
const DefaultAccount = "Cash"

type (
	// TxType classifies the direction of a transaction. Amounts are always
	// stored positive; the type alone decides whether money came in, went
	// out, or was set aside.
	TxType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is the canonical row produced by the normalizer.
	// Date and Amount are immutable after normalization; Type, Category
	// and Goal may be rewritten by reclassification.
	Transaction struct {
		Date     Date
		Amount   Money
		Category string
		Notes    string
		Type     TxType
		Account  string
		// Goal names the savings goal this row contributes to.
		// Set only when Type == Stash.
		Goal string
	}

	// Goal is a named savings target tracked via Stash transactions.
	Goal struct {
		Name   string
		Target Money
		Emoji  string
	}
)

var (
	ErrMissingDate       = errors.New("missing or unparseable date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyLedger       = errors.New("no valid rows after normalization")
	ErrMappingIncomplete = errors.New("mapping incomplete: Date and Amount must be mapped")
	ErrUnknownGoal       = errors.New("unknown goal")
	ErrGoalInUse         = errors.New("goal still referenced by stash transactions")
	ErrGoalExists        = errors.New("goal already exists")
)

// StandardCategories is the closed category set; stash goal names extend
// it dynamically.
var StandardCategories = []string{
	"Family & Friends",
	"Fitness",
	"Groceries",
	"Health",
	"Home Improvement",
	"Internet",
	"Laundry",
	CategoryMisc,
}

// CanonicalCategory trims and case-normalizes raw against the standard set
// plus extra (goal names). Unrecognized values fall back to Misc.
func CanonicalCategory(raw string, extra []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryMisc
	}
	for _, c := range StandardCategories {
		if strings.EqualFold(raw, c) {
			return c
		}
	}
	for _, c := range extra {
		if strings.EqualFold(raw, c) {
			return c
		}
	}
	return CategoryMisc
}

func (t TxType) Valid() bool {
	switch t {
	case Income, Expense, Stash:
		return true
	}
	return false
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// String renders the canonical YYYY-MM-DD form used by the export contract.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthStart returns the first day of d's calendar month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Time.Month()), 1)
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return fmt.Errorf("invalid transaction type %q", t.Type)
	}
	if t.Type == Stash && strings.TrimSpace(t.Goal) == "" {
		return ErrUnknownGoal
	}
	if t.Type != Stash && t.Goal != "" {
		return errors.New("goal set on non-stash transaction")
	}
	if strings.TrimSpace(t.Category) == "" {
		return errors.New("empty category")
	}
	if strings.TrimSpace(t.Account) == "" {
		return errors.New("empty account")
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("empty goal name")
	}
	if g.Target.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// RowError reports a single rejected row during normalization. Row indices
// refer to the raw input in original order.
type RowError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Ledger is the ordered, session-owned collection of canonical
// transactions, chronologically sorted with input order preserved on ties.
type Ledger struct {
	txs []Transaction
}

// NewLedger takes ownership of txs and sorts them by date, stable on ties.
func NewLedger(txs []Transaction) *Ledger {
	l := &Ledger{txs: txs}
	sort.SliceStable(l.txs, func(i, j int) bool {
		return l.txs[i].Date.Before(l.txs[j].Date.Time)
	})
	return l
}

func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.txs)
}

func (l *Ledger) At(i int) Transaction {
	return l.txs[i]
}

// Transactions returns a copy; callers never hold references into the ledger.
func (l *Ledger) Transactions() []Transaction {
	if l == nil {
		return nil
	}
	out := make([]Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// Reclassify rewrites the type/category/goal triple of row i in place.
// Date and amount are never touched; corrections to those require Replace.
func (l *Ledger) Reclassify(i int, typ TxType, category, goal string) error {
	if i < 0 || i >= len(l.txs) {
		return fmt.Errorf("transaction index %d out of range", i)
	}
	if !typ.Valid() {
		return fmt.Errorf("invalid transaction type %q", typ)
	}
	if typ == Stash {
		if strings.TrimSpace(goal) == "" {
			return ErrUnknownGoal
		}
	} else {
		goal = ""
	}
	if strings.TrimSpace(category) == "" {
		category = l.txs[i].Category
	}
	l.txs[i].Type = typ
	l.txs[i].Category = category
	l.txs[i].Goal = goal
	return nil
}

// Replace swaps out row i entirely, re-sorting if the date changed.
func (l *Ledger) Replace(i int, t Transaction) error {
	if i < 0 || i >= len(l.txs) {
		return fmt.Errorf("transaction index %d out of range", i)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	resort := !t.Date.Equal(l.txs[i].Date.Time)
	l.txs[i] = t
	if resort {
		sort.SliceStable(l.txs, func(a, b int) bool {
			return l.txs[a].Date.Before(l.txs[b].Date.Time)
		})
	}
	return nil
}

// Append inserts a transaction keeping chronological order. Used by the
// interactive logging path, not by bulk import.
func (l *Ledger) Append(t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	l.txs = append(l.txs, t)
	sort.SliceStable(l.txs, func(a, b int) bool {
		return l.txs[a].Date.Before(l.txs[b].Date.Time)
	})
	return nil
}

// GoalReferenced reports whether any stash transaction points at name.
func (l *Ledger) GoalReferenced(name string) bool {
	if l == nil {
		return false
	}
	for _, t := range l.txs {
		if t.Type == Stash && strings.EqualFold(t.Goal, name) {
			return true
		}
	}
	return false
}
