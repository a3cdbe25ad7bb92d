package session

import (
	"errors"
	"testing"
	"time"

	"pisopatrol/internal/core"
)

func seeded(t *testing.T) *Session {
	t.Helper()
	s := New()
	s.SetLedger(core.NewLedger([]core.Transaction{
		{Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 200000}, Category: "Misc", Type: core.Expense, Account: "Cash"},
		{Date: core.NewDate(2024, 3, 5), Amount: core.Money{Cents: 300000}, Category: "Misc", Type: core.Expense, Account: "Cash"},
		{Date: core.NewDate(2024, 3, 9), Amount: core.Money{Cents: 50000}, Category: "Groceries", Type: core.Expense, Account: "Cash"},
	}))
	return s
}

func TestReclassifyRequiresExistingGoal(t *testing.T) {
	s := seeded(t)
	if err := s.Reclassify(0, core.Stash, "Vacation Fund"); !errors.Is(err, core.ErrUnknownGoal) {
		t.Fatalf("err = %v, want ErrUnknownGoal", err)
	}

	if err := s.CreateGoal(core.Goal{Name: "Vacation Fund", Target: core.Money{Cents: 1000000}}); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if err := s.Reclassify(0, core.Stash, "vacation fund"); err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	tx := s.Snapshot()[0]
	if tx.Type != core.Stash || tx.Goal != "Vacation Fund" || tx.Category != "Vacation Fund" {
		t.Fatalf("reclassified row = %+v", tx)
	}

	// Reclassifying away clears the reference.
	if err := s.Reclassify(0, core.Expense, ""); err != nil {
		t.Fatalf("Reclassify back: %v", err)
	}
	if tx := s.Snapshot()[0]; tx.Goal != "" {
		t.Fatalf("goal not cleared: %+v", tx)
	}
}

func TestBulkReclassifyBestEffort(t *testing.T) {
	s := seeded(t)
	if err := s.CreateGoal(core.Goal{Name: "Emergency", Target: core.Money{Cents: 5000000}}); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	outcomes := s.ReclassifyMatching("Misc", core.Stash, "Emergency")
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %+v, want 2 rows", outcomes)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("row %d: %v", o.Row, o.Err)
		}
	}

	// Unknown goal: each matching row reports failure independently and
	// nothing is rolled back.
	bad := s.ReclassifyMatching("Groceries", core.Stash, "Nope")
	if len(bad) != 1 || !errors.Is(bad[0].Err, core.ErrUnknownGoal) {
		t.Fatalf("bad outcomes = %+v", bad)
	}
	for _, tx := range s.Snapshot() {
		if tx.Category == "Emergency" && tx.Type != core.Stash {
			t.Errorf("previously applied row rolled back: %+v", tx)
		}
	}
}

func TestGoalLifecycle(t *testing.T) {
	s := seeded(t)
	g := core.Goal{Name: "Vacation Fund", Target: core.Money{Cents: 1000000}, Emoji: "✈️"}
	if err := s.CreateGoal(g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if err := s.CreateGoal(g); !errors.Is(err, core.ErrGoalExists) {
		t.Fatalf("duplicate create: %v", err)
	}
	if err := s.UpdateGoal(core.Goal{Name: "Vacation Fund", Target: core.Money{Cents: 2000000}}); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	if got, _ := s.Goal("vacation fund"); got.Target.Cents != 2000000 {
		t.Fatalf("update not applied: %+v", got)
	}

	// Deletion is denied while stash rows reference the goal.
	if err := s.Reclassify(0, core.Stash, "Vacation Fund"); err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	if err := s.DeleteGoal("Vacation Fund"); !errors.Is(err, core.ErrGoalInUse) {
		t.Fatalf("delete while referenced: %v, want ErrGoalInUse", err)
	}
	if err := s.Reclassify(0, core.Expense, ""); err != nil {
		t.Fatalf("Reclassify back: %v", err)
	}
	if err := s.DeleteGoal("Vacation Fund"); err != nil {
		t.Fatalf("delete after dereference: %v", err)
	}
	if err := s.DeleteGoal("Vacation Fund"); !errors.Is(err, core.ErrUnknownGoal) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestAppendDefaultsDateToToday(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	err := s.Append(core.Transaction{Amount: core.Money{Cents: 12500}, Category: "Groceries"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	tx := s.Snapshot()[0]
	if tx.Date != core.NewDate(2024, 6, 15) {
		t.Errorf("date = %v, want today", tx.Date)
	}
	if tx.Account != core.DefaultAccount || tx.Type != core.Expense {
		t.Errorf("defaults not applied: %+v", tx)
	}
}

func TestClear(t *testing.T) {
	s := seeded(t)
	if err := s.CreateGoal(core.Goal{Name: "G", Target: core.Money{Cents: 100}}); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	s.Clear()
	if s.HasLedger() || len(s.Goals()) != 0 {
		t.Fatal("session not cleared")
	}
}
