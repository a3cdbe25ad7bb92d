// Package metrics computes derived, read-only views over a ledger
// snapshot: cumulative balances, period aggregates, month-over-month and
// year-to-date deltas, pace alerts, goal attainment and forecasts.
//
// Everything is recomputed from scratch per call; at personal-finance
// scale (thousands of rows) there is nothing worth caching.
//
// Boundary policy: weeks are ISO weeks bucketed by their Monday, months
// are calendar months bucketed by their first day.
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"pisopatrol/internal/core"
)

// DefaultPaceThreshold flags a category once its projected month-end
// spend exceeds last month's total by 20%.
const DefaultPaceThreshold = 0.20

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

type Engine struct {
	txs []core.Transaction
}

// New builds an engine over a ledger snapshot. The engine never mutates
// the slice.
func New(txs []core.Transaction) *Engine {
	return &Engine{txs: txs}
}

// BalancePoint is one calendar day on the cumulative balance curve.
// Same-date amounts are summed before accumulating.
type BalancePoint struct {
	Date    core.Date
	Income  core.Money
	Expense core.Money
	Stash   core.Money
	// Net is the running total of income - expense - stash through Date.
	Net core.Money
}

// CumulativeBalance returns the day-by-day running net balance in
// chronological order.
func (e *Engine) CumulativeBalance() []BalancePoint {
	byDay := make(map[core.Date]*BalancePoint)
	for _, tx := range e.txs {
		p, ok := byDay[tx.Date]
		if !ok {
			p = &BalancePoint{Date: tx.Date}
			byDay[tx.Date] = p
		}
		switch tx.Type {
		case core.Income:
			p.Income.Cents += tx.Amount.Cents
		case core.Expense:
			p.Expense.Cents += tx.Amount.Cents
		case core.Stash:
			p.Stash.Cents += tx.Amount.Cents
		}
	}
	out := make([]BalancePoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	var running int64
	for i := range out {
		running += out[i].Income.Cents - out[i].Expense.Cents - out[i].Stash.Cents
		out[i].Net = core.Money{Cents: running}
	}
	return out
}

// Aggregate is the total for one (type, category, period-start) bucket.
type Aggregate struct {
	Type     core.TxType
	Category string
	Start    core.Date
	Total    core.Money
	Count    int
}

// PeriodAggregates sums amounts grouped by type, category and calendar
// period, sorted by period start, then type, then category.
func (e *Engine) PeriodAggregates(p Period) []Aggregate {
	type key struct {
		typ      core.TxType
		category string
		start    core.Date
	}
	buckets := make(map[key]*Aggregate)
	for _, tx := range e.txs {
		k := key{typ: tx.Type, category: tx.Category, start: periodStart(tx.Date, p)}
		a, ok := buckets[k]
		if !ok {
			a = &Aggregate{Type: k.typ, Category: k.category, Start: k.start}
			buckets[k] = a
		}
		a.Total.Cents += tx.Amount.Cents
		a.Count++
	}
	out := make([]Aggregate, 0, len(buckets))
	for _, a := range buckets {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start.Time) {
			return out[i].Start.Before(out[j].Start.Time)
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func periodStart(d core.Date, p Period) core.Date {
	switch p {
	case PeriodWeek:
		wd := int(d.Weekday())
		if wd == 0 {
			wd = 7
		}
		return core.DateOf(d.AddDate(0, 0, -(wd - 1)))
	case PeriodMonth:
		return d.MonthStart()
	default:
		return d
	}
}

// Delta compares a period's total against a reference period. Ok is
// false when the reference is zero: that is the "new spending" case,
// never a division error.
type Delta struct {
	Current  core.Money
	Previous core.Money
	// Ratio is (current - previous) / previous; meaningful only when Ok.
	Ratio float64
	Ok    bool
}

// CategoryMonthSpend totals expense amounts for a category in the
// calendar month containing month.
func (e *Engine) CategoryMonthSpend(category string, month core.Date) core.Money {
	start := month.MonthStart()
	return e.expenseTotal(category, start, core.DateOf(start.AddDate(0, 1, 0)))
}

// MoMDelta compares a category's expense total in the month containing
// month against the previous calendar month.
func (e *Engine) MoMDelta(category string, month core.Date) Delta {
	cur := e.CategoryMonthSpend(category, month)
	prev := e.CategoryMonthSpend(category, core.DateOf(month.MonthStart().AddDate(0, -1, 0)))
	return makeDelta(cur, prev)
}

// YTDDelta compares a category's expense total from January 1 through
// asOf against the same partial period one year earlier.
func (e *Engine) YTDDelta(category string, asOf core.Date) Delta {
	thisStart := core.NewDate(asOf.Year(), 1, 1)
	cur := e.expenseTotal(category, thisStart, core.DateOf(asOf.AddDate(0, 0, 1)))
	lastStart := core.NewDate(asOf.Year()-1, 1, 1)
	prev := e.expenseTotal(category, lastStart, core.DateOf(asOf.AddDate(-1, 0, 1)))
	return makeDelta(cur, prev)
}

func makeDelta(cur, prev core.Money) Delta {
	d := Delta{Current: cur, Previous: prev}
	if prev.Cents == 0 {
		return d
	}
	d.Ratio = float64(cur.Cents-prev.Cents) / float64(prev.Cents)
	d.Ok = true
	return d
}

func (e *Engine) expenseTotal(category string, from, until core.Date) core.Money {
	var cents int64
	for _, tx := range e.txs {
		if tx.Type != core.Expense || !strings.EqualFold(tx.Category, category) {
			continue
		}
		if tx.Date.Before(from.Time) || !tx.Date.Before(until.Time) {
			continue
		}
		cents += tx.Amount.Cents
	}
	return core.Money{Cents: cents}
}

// PaceAlert flags a category spending faster than last month.
type PaceAlert struct {
	Category    string
	MonthToDate core.Money
	// Projected extrapolates month-to-date linearly to month end by
	// day-of-month ratio.
	Projected core.Money
	LastMonth core.Money
	// Overrun is projected/lastMonth - 1.
	Overrun float64
}

// PaceAlerts evaluates every expense category at asOf and returns those
// whose projected month-end spend exceeds last month's total by more
// than threshold. Categories with no spend last month are skipped (the
// comparison is undefined). Sorted by category name.
func (e *Engine) PaceAlerts(asOf core.Date, threshold float64) []PaceAlert {
	day := asOf.Day()
	if day == 0 {
		return nil
	}
	daysInMonth := time.Date(asOf.Year(), asOf.Time.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	monthStart := asOf.MonthStart()
	prevMonth := core.DateOf(monthStart.AddDate(0, -1, 0))

	var alerts []PaceAlert
	for _, category := range e.expenseCategories() {
		mtd := e.expenseTotal(category, monthStart, core.DateOf(asOf.AddDate(0, 0, 1)))
		last := e.CategoryMonthSpend(category, prevMonth)
		if last.Cents == 0 || mtd.Cents == 0 {
			continue
		}
		projected := core.Money{Cents: mtd.Cents * int64(daysInMonth) / int64(day)}
		overrun := float64(projected.Cents)/float64(last.Cents) - 1
		if overrun > threshold {
			alerts = append(alerts, PaceAlert{
				Category:    category,
				MonthToDate: mtd,
				Projected:   projected,
				LastMonth:   last,
				Overrun:     overrun,
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Category < alerts[j].Category })
	return alerts
}

func (e *Engine) expenseCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tx := range e.txs {
		if tx.Type != core.Expense || seen[tx.Category] {
			continue
		}
		seen[tx.Category] = true
		out = append(out, tx.Category)
	}
	sort.Strings(out)
	return out
}

// Attainment is one goal's funding progress.
type Attainment struct {
	Goal  core.Goal
	Saved core.Money
	// Raw may exceed 1 when a goal is overfunded.
	Raw float64
	// Clamped is Raw limited to [0, 1] for display.
	Clamped float64
}

// GoalAttainment sums stash contributions per goal and returns progress
// in the given goal order.
func (e *Engine) GoalAttainment(goals []core.Goal) []Attainment {
	out := make([]Attainment, 0, len(goals))
	for _, g := range goals {
		saved := e.stashTotal(g.Name)
		a := Attainment{Goal: g, Saved: saved}
		if g.Target.Cents > 0 {
			a.Raw = float64(saved.Cents) / float64(g.Target.Cents)
			a.Clamped = math.Min(math.Max(a.Raw, 0), 1)
		}
		out = append(out, a)
	}
	return out
}

func (e *Engine) stashTotal(goal string) core.Money {
	var cents int64
	for _, tx := range e.txs {
		if tx.Type == core.Stash && strings.EqualFold(tx.Goal, goal) {
			cents += tx.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// ForecastStatus classifies a goal forecast outcome.
type ForecastStatus string

const (
	ForecastNone      ForecastStatus = "no_contributions"
	ForecastMet       ForecastStatus = "met"
	ForecastEstimated ForecastStatus = "estimated"
)

// GoalForecast estimates when a goal will be reached at the average
// monthly savings rate observed so far.
type GoalForecast struct {
	Goal        core.Goal
	Saved       core.Money
	MonthlyRate core.Money
	// Estimated is set only when Status == ForecastEstimated; it projects
	// forward from the last contribution date.
	Estimated core.Date
	Status    ForecastStatus
}

// ForecastGoal computes the estimated completion date for one goal from
// all of its stash contributions.
func (e *Engine) ForecastGoal(g core.Goal) GoalForecast {
	f := GoalForecast{Goal: g}
	var first, last core.Date
	for _, tx := range e.txs {
		if tx.Type != core.Stash || !strings.EqualFold(tx.Goal, g.Name) {
			continue
		}
		f.Saved.Cents += tx.Amount.Cents
		if first.IsZero() || tx.Date.Before(first.Time) {
			first = tx.Date
		}
		if last.IsZero() || tx.Date.After(last.Time) {
			last = tx.Date
		}
	}
	if f.Saved.Cents == 0 {
		f.Status = ForecastNone
		return f
	}
	if f.Saved.Cents >= g.Target.Cents {
		f.Status = ForecastMet
		return f
	}

	months := (last.Year()-first.Year())*12 + int(last.Time.Month()) - int(first.Time.Month()) + 1
	if months <= 0 {
		months = 1
	}
	f.MonthlyRate = core.Money{Cents: f.Saved.Cents / int64(months)}
	if f.MonthlyRate.Cents <= 0 {
		f.Status = ForecastNone
		return f
	}
	remaining := g.Target.Cents - f.Saved.Cents
	monthsLeft := (remaining + f.MonthlyRate.Cents - 1) / f.MonthlyRate.Cents
	f.Estimated = core.DateOf(last.AddDate(0, int(monthsLeft), 0))
	f.Status = ForecastEstimated
	return f
}

// Habit summarizes one category's spending pattern: how much, how often,
// how big on average, and how recently.
type Habit struct {
	Category   string
	Total      core.Money
	Count      int
	Average    core.Money
	MostRecent core.Date
}

// Habits aggregates expense transactions per category, sorted by total
// spend descending (ties by name).
func (e *Engine) Habits() []Habit {
	byCat := make(map[string]*Habit)
	for _, tx := range e.txs {
		if tx.Type != core.Expense {
			continue
		}
		h, ok := byCat[tx.Category]
		if !ok {
			h = &Habit{Category: tx.Category}
			byCat[tx.Category] = h
		}
		h.Total.Cents += tx.Amount.Cents
		h.Count++
		if tx.Date.After(h.MostRecent.Time) {
			h.MostRecent = tx.Date
		}
	}
	out := make([]Habit, 0, len(byCat))
	for _, h := range byCat {
		h.Average = core.Money{Cents: h.Total.Cents / int64(h.Count)}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Summary is the headline view for a period: totals per type plus net
// savings (income - expenses - stashed).
type Summary struct {
	Income  core.Money
	Expense core.Money
	Stash   core.Money
	Net     core.Money
}

// Summarize totals the whole snapshot.
func (e *Engine) Summarize() Summary {
	var s Summary
	for _, tx := range e.txs {
		switch tx.Type {
		case core.Income:
			s.Income.Cents += tx.Amount.Cents
		case core.Expense:
			s.Expense.Cents += tx.Amount.Cents
		case core.Stash:
			s.Stash.Cents += tx.Amount.Cents
		}
	}
	s.Net.Cents = s.Income.Cents - s.Expense.Cents - s.Stash.Cents
	return s
}
