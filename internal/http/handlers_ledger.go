package http

import (
	"errors"
	"net/http"
	"strings"

	"pisopatrol/internal/core"
	"pisopatrol/internal/export"
	applog "pisopatrol/internal/log"
)

type ledgerResponse struct {
	HasLedger    bool              `json:"has_ledger"`
	Transactions []transactionJSON `json:"transactions"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot := s.session.Snapshot()
	resp := ledgerResponse{
		HasLedger:    s.session.HasLedger(),
		Transactions: make([]transactionJSON, len(snapshot)),
	}
	for i, tx := range snapshot {
		resp.Transactions[i] = toTransactionJSON(i, tx)
	}
	writeJSON(w, http.StatusOK, resp)
}

type reclassifyRequest struct {
	// Row selects a single transaction; Category selects every row in a
	// category. Exactly one must be set.
	Row      *int   `json:"row,omitempty"`
	Category string `json:"category,omitempty"`
	Type     string `json:"type"`
	Goal     string `json:"goal,omitempty"`
}

type reclassifyOutcomeJSON struct {
	Row   int    `json:"row"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req reclassifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	typ, err := parseTxType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if (req.Row == nil) == (req.Category == "") {
		writeError(w, http.StatusBadRequest, "set exactly one of row or category")
		return
	}

	if req.Row != nil {
		if err := s.session.Reclassify(*req.Row, typ, req.Goal); err != nil {
			writeSessionError(w, err)
			return
		}
		s.persistAndNotify(r.Context(), "reclassify")
		s.logger.InfoContext(r.Context(), "row reclassified",
			applog.FieldOperation, applog.OpReclassify, "row", *req.Row, "type", string(typ))
		writeJSON(w, http.StatusOK, map[string]any{"updated": 1})
		return
	}

	outcomes := s.session.ReclassifyMatching(req.Category, typ, req.Goal)
	updated := 0
	results := make([]reclassifyOutcomeJSON, 0, len(outcomes))
	for _, o := range outcomes {
		oj := reclassifyOutcomeJSON{Row: o.Row}
		if o.Err != nil {
			oj.Error = o.Err.Error()
		} else {
			updated++
		}
		results = append(results, oj)
	}
	if updated > 0 {
		s.persistAndNotify(r.Context(), "reclassify")
	}
	s.logger.InfoContext(r.Context(), "category reclassified",
		applog.FieldOperation, applog.OpReclassify,
		applog.FieldCategory, req.Category,
		"updated", updated)
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "outcomes": results})
}

type appendRequest struct {
	Date     string `json:"date,omitempty"`
	Amount   string `json:"amount"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Type     string `json:"type,omitempty"`
	Account  string `json:"account,omitempty"`
	Goal     string `json:"goal,omitempty"`
}

// handleAppend adds one manually entered transaction. Omitted fields
// get the interactive defaults: today, Cash, Expense, Misc.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req appendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var tx core.Transaction
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+req.Date)
			return
		}
		tx.Date = d
	}
	cents, negative, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+req.Amount)
		return
	}
	_ = negative // manual entries carry type explicitly; sign is ignored
	tx.Amount = core.Money{Cents: cents}
	tx.Category = strings.TrimSpace(req.Category)
	tx.Notes = strings.TrimSpace(req.Notes)
	tx.Account = strings.TrimSpace(req.Account)
	tx.Goal = strings.TrimSpace(req.Goal)
	if req.Type != "" {
		typ, err := parseTxType(req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tx.Type = typ
	}

	if err := s.session.Append(tx); err != nil {
		writeSessionError(w, err)
		return
	}
	s.persistAndNotify(r.Context(), "append")
	s.logger.InfoContext(r.Context(), "transaction appended",
		applog.FieldOperation, applog.OpAppend,
		applog.FieldAmountCents, tx.Amount.Cents)
	writeJSON(w, http.StatusCreated, map[string]any{"rows": len(s.session.Snapshot())})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := export.MarshalCSV(s.session.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render csv: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	_, _ = w.Write(data)
}

func parseTxType(s string) (core.TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return core.Income, nil
	case "expense":
		return core.Expense, nil
	case "stash":
		return core.Stash, nil
	default:
		return "", errors.New("invalid type: must be Income, Expense or Stash")
	}
}

// writeSessionError maps domain errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownGoal):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrGoalInUse), errors.Is(err, core.ErrGoalExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrMissingDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}
