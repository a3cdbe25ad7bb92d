package metrics

import (
	"fmt"
	"math"

	"pisopatrol/internal/core"
)

// DefaultSymbol is the currency symbol used when none is configured.
// Presentation only; amounts carry no currency.
const DefaultSymbol = "₱"

// Formatter renders metrics as short human-readable sentences.
type Formatter struct {
	Symbol string
}

func NewFormatter(symbol string) Formatter {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return Formatter{Symbol: symbol}
}

func (f Formatter) money(m core.Money) string {
	return f.Symbol + m.Display()
}

// ChangePhrase renders a delta as e.g. "a 22% increase from ₱450 last
// month". When the prior month is zero the comparison is undefined and
// the phrase says so instead of showing a percentage.
func (f Formatter) ChangePhrase(d Delta) string {
	if !d.Ok {
		return "no spending last month to compare against"
	}
	pct := math.Round(math.Abs(d.Ratio) * 100)
	direction := "increase"
	if d.Ratio < 0 {
		direction = "decrease"
	}
	if pct == 0 {
		return fmt.Sprintf("unchanged from %s last month", f.money(d.Previous))
	}
	return fmt.Sprintf("%s %.0f%% %s from %s last month", article(pct), pct, direction, f.money(d.Previous))
}

// article picks "a" or "an" for a spoken percentage: 8, 11, 18 and the
// eighties start with a vowel sound.
func article(pct float64) string {
	n := int(pct)
	if n == 8 || n == 11 || n == 18 || (n >= 80 && n <= 89) {
		return "an"
	}
	return "a"
}

// MoMInsight is the full month-over-month sentence for one category.
func (f Formatter) MoMInsight(category string, d Delta) string {
	return fmt.Sprintf("%s: %s this month, %s", category, f.money(d.Current), f.ChangePhrase(d))
}

// PaceInsight warns about a category pacing over last month's total.
func (f Formatter) PaceInsight(a PaceAlert) string {
	pct := math.Round(a.Overrun * 100)
	return fmt.Sprintf("%s is pacing to %s this month, %.0f%% over last month's %s",
		a.Category, f.money(a.Projected), pct, f.money(a.LastMonth))
}

// AttainmentInsight reports funding progress for one goal.
func (f Formatter) AttainmentInsight(a Attainment) string {
	pct := math.Round(a.Clamped * 100)
	name := a.Goal.Name
	if a.Goal.Emoji != "" {
		name = a.Goal.Emoji + " " + name
	}
	return fmt.Sprintf("%s is %.0f%% funded (%s of %s)",
		name, pct, f.money(a.Saved), f.money(a.Goal.Target))
}

// ForecastInsight reports the estimated completion date for one goal.
func (f Formatter) ForecastInsight(fc GoalForecast) string {
	switch fc.Status {
	case ForecastMet:
		return fmt.Sprintf("%s is fully funded", fc.Goal.Name)
	case ForecastEstimated:
		return fmt.Sprintf("%s should reach %s around %s at %s/month",
			fc.Goal.Name, f.money(fc.Goal.Target), fc.Estimated.Format("January 2006"), f.money(fc.MonthlyRate))
	default:
		return fmt.Sprintf("%s has no contributions yet", fc.Goal.Name)
	}
}

// HabitInsight summarizes one category's spending pattern.
func (f Formatter) HabitInsight(h Habit) string {
	times := "times"
	if h.Count == 1 {
		times = "time"
	}
	return fmt.Sprintf("%s: %s across %d %s, averaging %s, most recently on %s",
		h.Category, f.money(h.Total), h.Count, times, f.money(h.Average), h.MostRecent.String())
}
