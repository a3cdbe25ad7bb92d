package normalize

import (
	"errors"
	"reflect"
	"testing"

	"pisopatrol/internal/core"
	"pisopatrol/internal/mapping"
)

func standardTable(rows [][]string) core.RawTable {
	return core.RawTable{
		Headers: []string{"Date", "Amount", "Category", "Notes", "Type", "Account"},
		Rows:    rows,
	}
}

func TestRunHappyPath(t *testing.T) {
	table := standardTable([][]string{
		{"2024-03-01", "450", "Groceries", "weekly shop", "Expense", "Cash"},
		{"2024-02-15", "₱20,000.00", "Misc", "payday", "Salary", "BPI"},
	})
	res, err := Run(table, mapping.Infer(table.Headers), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected row errors: %v", res.Errors)
	}
	if res.Ledger.Len() != 2 {
		t.Fatalf("ledger len = %d", res.Ledger.Len())
	}
	// Chronological order: the February payday comes first.
	first := res.Ledger.At(0)
	if first.Type != core.Income || first.Amount.Cents != 2000000 || first.Account != "BPI" {
		t.Errorf("income row = %+v", first)
	}
	second := res.Ledger.At(1)
	if second.Category != "Groceries" || second.Amount.Cents != 45000 || second.Notes != "weekly shop" {
		t.Errorf("expense row = %+v", second)
	}
}

func TestRunDefaults(t *testing.T) {
	// Headers with no Category/Type/Account columns fall back to
	// Category=Misc, Account=Cash, Type=Expense.
	table := core.RawTable{
		Headers: []string{"when", "cost", "what"},
		Rows: [][]string{
			{"2024-03-01", "450", "groceries run"},
		},
	}
	res, err := Run(table, mapping.Infer(table.Headers), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tx := res.Ledger.At(0)
	if tx.Category != core.CategoryMisc {
		t.Errorf("category = %q, want Misc", tx.Category)
	}
	if tx.Account != core.DefaultAccount {
		t.Errorf("account = %q, want Cash", tx.Account)
	}
	if tx.Type != core.Expense {
		t.Errorf("type = %q, want Expense", tx.Type)
	}
}

func TestRunRowErrorsCollected(t *testing.T) {
	table := standardTable([][]string{
		{"not-a-date", "450", "Groceries", "", "Expense", ""},
		{"2024-03-02", "lots", "Groceries", "", "Expense", ""},
		{"2024-03-03", "100", "Groceries", "", "Expense", ""},
	})
	res, err := Run(table, mapping.Infer(table.Headers), nil)
	if err != nil {
		t.Fatalf("partial failure must not abort the batch: %v", err)
	}
	if res.Ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", res.Ledger.Len())
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", res.Errors)
	}
	if res.Errors[0].Row != 0 || !errors.Is(res.Errors[0], core.ErrMissingDate) {
		t.Errorf("first error = %+v, want MissingDate at row 0", res.Errors[0])
	}
	if res.Errors[1].Row != 1 || !errors.Is(res.Errors[1], core.ErrInvalidAmount) {
		t.Errorf("second error = %+v, want InvalidAmount at row 1", res.Errors[1])
	}
}

func TestRunEmptyLedger(t *testing.T) {
	table := standardTable([][]string{
		{"bad", "450", "", "", "", ""},
		{"2024-01-01", "bad", "", "", "", ""},
	})
	if _, err := Run(table, mapping.Infer(table.Headers), nil); !errors.Is(err, core.ErrEmptyLedger) {
		t.Fatalf("err = %v, want ErrEmptyLedger", err)
	}
	if _, err := Run(standardTable(nil), mapping.Infer(standardTable(nil).Headers), nil); !errors.Is(err, core.ErrEmptyLedger) {
		t.Fatalf("empty batch: err = %v, want ErrEmptyLedger", err)
	}
}

func TestRunIncompleteMappingBlocks(t *testing.T) {
	table := core.RawTable{Headers: []string{"foo", "bar"}, Rows: [][]string{{"a", "b"}}}
	if _, err := Run(table, mapping.Infer(table.Headers), nil); !errors.Is(err, core.ErrMappingIncomplete) {
		t.Fatalf("err = %v, want ErrMappingIncomplete", err)
	}
}

func TestRunAmountAlwaysPositive(t *testing.T) {
	table := standardTable([][]string{
		{"2024-03-01", "-450", "Groceries", "", "Expense", ""},
		{"2024-03-02", "(89.50)", "Internet", "", "Expense", ""},
	})
	res, err := Run(table, mapping.Infer(table.Headers), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tx := range res.Ledger.Transactions() {
		if tx.Amount.Cents < 0 {
			t.Errorf("negative amount survived: %+v", tx)
		}
	}
	if res.Ledger.At(0).Amount.Cents != 45000 || res.Ledger.At(1).Amount.Cents != 8950 {
		t.Errorf("abs parsing wrong: %d, %d", res.Ledger.At(0).Amount.Cents, res.Ledger.At(1).Amount.Cents)
	}
}

func TestRunStashBindsGoal(t *testing.T) {
	table := standardTable([][]string{
		{"2024-03-01", "2000", "Vacation Fund", "", "Stash", ""},
		{"2024-03-02", "500", "Retirement", "", "Stash", ""},
	})
	res, err := Run(table, mapping.Infer(table.Headers), []string{"Vacation Fund"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bound := res.Ledger.At(0)
	if bound.Type != core.Stash || bound.Goal != "Vacation Fund" {
		t.Errorf("stash row = %+v", bound)
	}
	// Stash row with no declared goal falls back to Expense.
	orphan := res.Ledger.At(1)
	if orphan.Type != core.Expense || orphan.Goal != "" {
		t.Errorf("orphan stash row = %+v", orphan)
	}
}

func TestRunDeterministic(t *testing.T) {
	table := standardTable([][]string{
		{"2024-03-01", "450", "Groceries", "", "Expense", ""},
		{"oops", "1", "", "", "", ""},
		{"2024-03-01", "100", "Fitness", "", "Expense", ""},
	})
	m := mapping.Infer(table.Headers)
	a, errA := Run(table, m, nil)
	b, errB := Run(table, m, nil)
	if errA != nil || errB != nil {
		t.Fatalf("Run: %v / %v", errA, errB)
	}
	if !reflect.DeepEqual(a.Ledger.Transactions(), b.Ledger.Transactions()) {
		t.Fatal("ledgers differ between runs")
	}
	if !reflect.DeepEqual(a.Errors, b.Errors) {
		t.Fatal("error lists differ between runs")
	}
}

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want core.Date
	}{
		{"2024-03-01", core.NewDate(2024, 3, 1)},
		{"3/1/2024", core.NewDate(2024, 3, 1)},
		{"03/01/2024", core.NewDate(2024, 3, 1)},
		{"2024/3/1", core.NewDate(2024, 3, 1)},
		{"Mar 1, 2024", core.NewDate(2024, 3, 1)},
		{"1 Mar 2024", core.NewDate(2024, 3, 1)},
	}
	for _, tc := range cases {
		got, err := parseDate(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("parseDate(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := parseDate("yesterday"); err == nil {
		t.Error("expected error for unparseable date")
	}
}
