package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pisopatrol/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// newToken returns a random hex identifier for pending imports.
func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// rand.Read only fails when the platform entropy source is broken
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(b)
}

func parseDate(dateStr string) (core.Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

// transactionJSON is the wire form of a ledger row.
type transactionJSON struct {
	Row      int    `json:"row"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Cents    int64  `json:"amount_cents"`
	Category string `json:"category"`
	Notes    string `json:"notes,omitempty"`
	Type     string `json:"type"`
	Account  string `json:"account"`
	Goal     string `json:"goal,omitempty"`
}

func toTransactionJSON(i int, tx core.Transaction) transactionJSON {
	return transactionJSON{
		Row:      i,
		Date:     tx.Date.String(),
		Amount:   tx.Amount.Decimal(),
		Cents:    tx.Amount.Cents,
		Category: tx.Category,
		Notes:    tx.Notes,
		Type:     string(tx.Type),
		Account:  tx.Account,
		Goal:     tx.Goal,
	}
}

type rowErrorJSON struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}

func toRowErrorJSON(e core.RowError) rowErrorJSON {
	return rowErrorJSON{Row: e.Row, Field: e.Field, Value: e.Value, Error: e.Err.Error()}
}
