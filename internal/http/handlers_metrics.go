package http

import (
	"net/http"
	"strings"
	"time"

	"pisopatrol/internal/cluster"
	"pisopatrol/internal/core"
	"pisopatrol/internal/metrics"
)

func (s *Server) engine() *metrics.Engine {
	return metrics.New(s.session.Snapshot())
}

func (s *Server) formatter() metrics.Formatter {
	return metrics.NewFormatter(s.cfg.CurrencySymbol)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sum := s.engine().Summarize()
	writeJSON(w, http.StatusOK, map[string]any{
		"income":  sum.Income.Decimal(),
		"expense": sum.Expense.Decimal(),
		"stash":   sum.Stash.Decimal(),
		"net":     sum.Net.Decimal(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	points := s.engine().CumulativeBalance()
	type pointJSON struct {
		Date    string `json:"date"`
		Income  string `json:"income"`
		Expense string `json:"expense"`
		Stash   string `json:"stash"`
		Net     string `json:"net"`
	}
	out := make([]pointJSON, len(points))
	for i, p := range points {
		out[i] = pointJSON{
			Date:    p.Date.String(),
			Income:  p.Income.Decimal(),
			Expense: p.Expense.Decimal(),
			Stash:   p.Stash.Decimal(),
			Net:     p.Net.Decimal(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": out})
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	period := metrics.Period(strings.ToLower(r.URL.Query().Get("period")))
	switch period {
	case "":
		period = metrics.PeriodMonth
	case metrics.PeriodDay, metrics.PeriodWeek, metrics.PeriodMonth:
	default:
		writeError(w, http.StatusBadRequest, "invalid period: must be day, week or month")
		return
	}
	aggs := s.engine().PeriodAggregates(period)
	type aggJSON struct {
		Type     string `json:"type"`
		Category string `json:"category"`
		Start    string `json:"start"`
		Total    string `json:"total"`
		Count    int    `json:"count"`
	}
	out := make([]aggJSON, len(aggs))
	for i, a := range aggs {
		out[i] = aggJSON{
			Type:     string(a.Type),
			Category: a.Category,
			Start:    a.Start.String(),
			Total:    a.Total.Decimal(),
			Count:    a.Count,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": string(period), "aggregates": out})
}

// handleMoM reports month-over-month and year-to-date deltas for one
// category, with insight text.
func (s *Server) handleMoM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	month, ok := s.asOfParam(w, r, "month")
	if !ok {
		return
	}

	eng := s.engine()
	f := s.formatter()
	mom := eng.MoMDelta(category, month)
	ytd := eng.YTDDelta(category, month)

	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"month": map[string]any{
			"current":  mom.Current.Decimal(),
			"previous": mom.Previous.Decimal(),
			"ratio":    mom.Ratio,
			"defined":  mom.Ok,
			"insight":  f.MoMInsight(category, mom),
		},
		"ytd": map[string]any{
			"current":  ytd.Current.Decimal(),
			"previous": ytd.Previous.Decimal(),
			"ratio":    ytd.Ratio,
			"defined":  ytd.Ok,
		},
	})
}

func (s *Server) handlePace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	asOf, ok := s.asOfParam(w, r, "as_of")
	if !ok {
		return
	}
	alerts := s.engine().PaceAlerts(asOf, s.cfg.PaceThreshold)
	f := s.formatter()
	type alertJSON struct {
		Category    string  `json:"category"`
		MonthToDate string  `json:"month_to_date"`
		Projected   string  `json:"projected"`
		LastMonth   string  `json:"last_month"`
		Overrun     float64 `json:"overrun"`
		Insight     string  `json:"insight"`
	}
	out := make([]alertJSON, len(alerts))
	for i, a := range alerts {
		out[i] = alertJSON{
			Category:    a.Category,
			MonthToDate: a.MonthToDate.Decimal(),
			Projected:   a.Projected.Decimal(),
			LastMonth:   a.LastMonth.Decimal(),
			Overrun:     a.Overrun,
			Insight:     f.PaceInsight(a),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf.String(), "alerts": out})
}

// handleGoalMetrics reports attainment and forecast for every goal.
func (s *Server) handleGoalMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	eng := s.engine()
	f := s.formatter()
	goals := s.session.Goals()
	type goalMetricsJSON struct {
		Goal            goalJSON `json:"goal"`
		Saved           string   `json:"saved"`
		Attainment      float64  `json:"attainment"`
		AttainmentRaw   float64  `json:"attainment_raw"`
		Status          string   `json:"status"`
		EstimatedDate   string   `json:"estimated_date,omitempty"`
		MonthlyRate     string   `json:"monthly_rate,omitempty"`
		Insight         string   `json:"insight"`
		ForecastInsight string   `json:"forecast"`
	}
	attainments := eng.GoalAttainment(goals)
	out := make([]goalMetricsJSON, len(goals))
	for i, g := range goals {
		fc := eng.ForecastGoal(g)
		gm := goalMetricsJSON{
			Goal:            toGoalJSON(g),
			Saved:           attainments[i].Saved.Decimal(),
			Attainment:      attainments[i].Clamped,
			AttainmentRaw:   attainments[i].Raw,
			Status:          string(fc.Status),
			Insight:         f.AttainmentInsight(attainments[i]),
			ForecastInsight: f.ForecastInsight(fc),
		}
		if fc.Status == metrics.ForecastEstimated {
			gm.EstimatedDate = fc.Estimated.String()
			gm.MonthlyRate = fc.MonthlyRate.Decimal()
		}
		out[i] = gm
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

func (s *Server) handleHabits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	habits := s.engine().Habits()
	f := s.formatter()
	type habitJSON struct {
		Category   string `json:"category"`
		Total      string `json:"total"`
		Count      int    `json:"count"`
		Average    string `json:"average"`
		MostRecent string `json:"most_recent"`
		Insight    string `json:"insight"`
	}
	out := make([]habitJSON, len(habits))
	for i, h := range habits {
		out[i] = habitJSON{
			Category:   h.Category,
			Total:      h.Total.Decimal(),
			Count:      h.Count,
			Average:    h.Average.Decimal(),
			MostRecent: h.MostRecent.String(),
			Insight:    f.HabitInsight(h),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": out})
}

func (s *Server) handleCohorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res := cluster.Run(s.session.Snapshot(), cluster.Options{
		K:    s.cfg.ClusterCount,
		Seed: s.cfg.ClusterSeed,
	})
	type assignmentJSON struct {
		Category   string  `json:"category"`
		Cohort     string  `json:"cohort"`
		MeanAmount string  `json:"mean_amount"`
		Count      int     `json:"count"`
		StdDev     float64 `json:"std_dev"`
	}
	out := make([]assignmentJSON, len(res.Assignments))
	for i, a := range res.Assignments {
		out[i] = assignmentJSON{
			Category:   a.Features.Category,
			Cohort:     a.Cohort,
			MeanAmount: a.Features.MeanAmount.Decimal(),
			Count:      a.Features.Count,
			StdDev:     a.Features.StdDev,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"k":           res.K,
		"degenerate":  res.Degenerate,
		"assignments": out,
	})
}

// asOfParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) asOfParam(w http.ResponseWriter, r *http.Request, name string) (core.Date, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.DateOf(time.Now()), true
	}
	d, err := parseDate(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": want YYYY-MM-DD")
		return core.Date{}, false
	}
	return d, true
}
