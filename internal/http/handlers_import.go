package http

import (
	"io"
	"net/http"
	"strings"

	"pisopatrol/internal/core"
	applog "pisopatrol/internal/log"
	"pisopatrol/internal/mapping"
	"pisopatrol/internal/normalize"
	"pisopatrol/internal/sheets/csvfile"
	"pisopatrol/internal/sheets/google"
)

const maxUploadBytes = 8 << 20

type importPreviewResponse struct {
	Token      string             `json:"token"`
	Headers    []string           `json:"headers"`
	Rows       int                `json:"rows"`
	Mapping    map[string]string  `json:"mapping"`
	Confidence map[string]float64 `json:"confidence"`
	Incomplete bool               `json:"incomplete"`
}

// handleImportPreview accepts either a raw CSV body or a JSON
// {"spreadsheet": ...} reference, infers the column mapping and parks
// the table for confirmation.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	m := mapping.InferWithThreshold(table.Headers, s.cfg.MappingThreshold)
	token := newToken()
	s.pending.Set(token, pendingImport{table: table, mapping: m})

	s.logger.InfoContext(r.Context(), "import previewed",
		applog.FieldOperation, applog.OpMap,
		applog.FieldRowCount, len(table.Rows))

	writeJSON(w, http.StatusOK, importPreviewResponse{
		Token:      token,
		Headers:    table.Headers,
		Rows:       len(table.Rows),
		Mapping:    m.Fields,
		Confidence: m.Confidence,
		Incomplete: m.Incomplete(),
	})
}

func (s *Server) loadTable(w http.ResponseWriter, r *http.Request) (table core.RawTable, ok bool) {
	defer r.Body.Close()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Spreadsheet string `json:"spreadsheet"`
			Range       string `json:"range"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return table, false
		}
		if s.cfg.SheetsAPIKey == "" {
			writeError(w, http.StatusUnprocessableEntity, "spreadsheet import disabled: no sheets api key configured")
			return table, false
		}
		reader, err := google.NewReader(r.Context(), s.cfg.SheetsAPIKey, req.Spreadsheet, req.Range)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return table, false
		}
		table, err = reader.Load(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "load spreadsheet: "+err.Error())
			return table, false
		}
		return table, true
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return table, false
	}
	table, err = csvfile.FromBytes(body).Load(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return table, false
	}
	return table, true
}

// handleImportSubpath routes /imports/{token}/mapping and
// /imports/{token}/confirm.
func (s *Server) handleImportSubpath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/imports/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	token, action := parts[0], parts[1]

	pi, ok := s.pending.Get(token)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown or expired import token")
		return
	}

	switch action {
	case "mapping":
		s.handleMappingOverride(w, r, token, pi)
	case "confirm":
		s.handleImportConfirm(w, r, token, pi)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleMappingOverride(w http.ResponseWriter, r *http.Request, token string, pi pendingImport) {
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	m := pi.mapping
	for field, column := range req.Fields {
		m = m.Override(field, column)
	}
	pi.mapping = m
	s.pending.Set(token, pi)

	writeJSON(w, http.StatusOK, importPreviewResponse{
		Token:      token,
		Headers:    pi.table.Headers,
		Rows:       len(pi.table.Rows),
		Mapping:    m.Fields,
		Confidence: m.Confidence,
		Incomplete: m.Incomplete(),
	})
}

type importConfirmResponse struct {
	Imported int            `json:"imported"`
	Total    int            `json:"total"`
	Dropped  []rowErrorJSON `json:"dropped"`
}

func (s *Server) handleImportConfirm(w http.ResponseWriter, r *http.Request, token string, pi pendingImport) {
	result, err := normalize.Run(pi.table, pi.mapping, s.session.GoalNames())
	if err != nil {
		// The row errors say why each row fell out, so the caller can
		// correct the source data and retry.
		dropped := make([]rowErrorJSON, 0, len(result.Errors))
		for _, e := range result.Errors {
			dropped = append(dropped, toRowErrorJSON(e))
		}
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error   string         `json:"error"`
			Dropped []rowErrorJSON `json:"dropped"`
		}{Error: err.Error(), Dropped: dropped})
		return
	}

	s.session.SetLedger(result.Ledger)
	s.pending.Delete(token)
	s.persistAndNotify(r.Context(), "import")

	dropped := make([]rowErrorJSON, 0, len(result.Errors))
	for _, e := range result.Errors {
		dropped = append(dropped, toRowErrorJSON(e))
	}

	s.logger.InfoContext(r.Context(), "import confirmed",
		applog.FieldOperation, applog.OpImport,
		applog.FieldRowCount, result.Ledger.Len(),
		applog.FieldDropped, len(dropped))

	writeJSON(w, http.StatusOK, importConfirmResponse{
		Imported: result.Ledger.Len(),
		Total:    result.Total,
		Dropped:  dropped,
	})
}
