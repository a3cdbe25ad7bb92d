// Package session models the single interactive session that owns the
// current ledger and goal registry. It is created on import, replaced
// wholesale on re-import, and cleared on session end; components never
// share ledger state outside it.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"pisopatrol/internal/core"
)

type Session struct {
	mu     sync.Mutex
	ledger *core.Ledger
	goals  map[string]core.Goal
	// now is injectable so the interactive-logging default date is testable.
	now func() time.Time
}

func New() *Session {
	return &Session{
		goals: make(map[string]core.Goal),
		now:   time.Now,
	}
}

// SetLedger installs a freshly normalized ledger, replacing any previous
// one. Goals survive a re-import; stash references are re-validated lazily
// by the metrics layer.
func (s *Session) SetLedger(l *core.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l
}

// Clear drops all session state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = nil
	s.goals = make(map[string]core.Goal)
}

// HasLedger reports whether an import has happened yet.
func (s *Session) HasLedger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger != nil
}

// Snapshot returns a copy of the current transactions for read-only
// consumers (metrics, clustering, export, charting).
func (s *Session) Snapshot() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Transactions()
}

// Goals returns the registered goals sorted by name.
func (s *Session) Goals() []core.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GoalNames returns the sorted goal names; these extend the category set.
func (s *Session) GoalNames() []string {
	goals := s.Goals()
	names := make([]string, len(goals))
	for i, g := range goals {
		names[i] = g.Name
	}
	return names
}

// CreateGoal registers a new goal. Goals must exist before any
// transaction can reference them.
func (s *Session) CreateGoal(g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := goalKey(g.Name)
	if _, exists := s.goals[key]; exists {
		return core.ErrGoalExists
	}
	s.goals[key] = g
	return nil
}

// UpdateGoal rewrites the target or emoji of an existing goal.
func (s *Session) UpdateGoal(g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := goalKey(g.Name)
	if _, exists := s.goals[key]; !exists {
		return core.ErrUnknownGoal
	}
	s.goals[key] = g
	return nil
}

// DeleteGoal denies deletion while stash transactions still reference the
// goal; callers must reclassify those rows first.
func (s *Session) DeleteGoal(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := goalKey(name)
	if _, exists := s.goals[key]; !exists {
		return core.ErrUnknownGoal
	}
	if s.ledger.GoalReferenced(name) {
		return core.ErrGoalInUse
	}
	delete(s.goals, key)
	return nil
}

// Goal looks up a goal by name, case-insensitively.
func (s *Session) Goal(name string) (core.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalKey(name)]
	return g, ok
}

// Reclassify rewrites the type/category/goal of ledger row i. A move to
// Stash requires an existing goal; a move away from Stash clears it.
func (s *Session) Reclassify(i int, typ core.TxType, goal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return core.ErrEmptyLedger
	}
	category := ""
	if typ == core.Stash {
		g, ok := s.goals[goalKey(goal)]
		if !ok {
			return core.ErrUnknownGoal
		}
		// Stash rows adopt the goal name as their category.
		goal = g.Name
		category = g.Name
	}
	return s.ledger.Reclassify(i, typ, category, goal)
}

// Outcome is one row's result in a bulk reclassification.
type Outcome struct {
	Row int
	Err error
}

// ReclassifyMatching applies a reclassification to every row whose
// category matches, as a sequence of atomic single-row operations.
// Best-effort: one row's failure never rolls back the rows before it.
func (s *Session) ReclassifyMatching(category string, typ core.TxType, goal string) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil
	}
	var out []Outcome
	for i := 0; i < s.ledger.Len(); i++ {
		if !strings.EqualFold(s.ledger.At(i).Category, category) {
			continue
		}
		newCategory := ""
		rowGoal := goal
		if typ == core.Stash {
			g, ok := s.goals[goalKey(goal)]
			if !ok {
				out = append(out, Outcome{Row: i, Err: core.ErrUnknownGoal})
				continue
			}
			rowGoal = g.Name
			newCategory = g.Name
		}
		out = append(out, Outcome{Row: i, Err: s.ledger.Reclassify(i, typ, newCategory, rowGoal)})
	}
	return out
}

// Append logs a single transaction interactively. Unlike bulk import,
// this path defaults a zero date to today and an empty account to Cash.
func (s *Session) Append(t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Date.IsZero() {
		t.Date = core.DateOf(s.now())
	}
	if strings.TrimSpace(t.Account) == "" {
		t.Account = core.DefaultAccount
	}
	if t.Type == "" {
		t.Type = core.Expense
	}
	if t.Type == core.Stash {
		g, ok := s.goals[goalKey(t.Goal)]
		if !ok {
			return core.ErrUnknownGoal
		}
		t.Goal = g.Name
		t.Category = g.Name
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = core.CategoryMisc
	}
	if s.ledger == nil {
		s.ledger = core.NewLedger(nil)
	}
	return s.ledger.Append(t)
}

func goalKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
