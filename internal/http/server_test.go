package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pisopatrol/internal/config"
	"pisopatrol/internal/session"
)

const sampleCSV = "Date,Amount,Category,Notes,Type,Account\n" +
	"2024-04-01,₱20000.00,Salary,,Income,Bank\n" +
	"2024-04-03,450.00,Groceries,weekly run,Expense,Cash\n" +
	"2024-04-05,89.50,Laundry,,Expense,Cash\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Port:             "0",
		CurrencySymbol:   "₱",
		MappingThreshold: 0.5,
		ClusterCount:     3,
		ClusterSeed:      1,
		PaceThreshold:    0.20,
	}
	return NewServer(cfg, session.New(), nil, nil, nil)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, decoded
}

// importSample drives the preview + confirm flow and returns the server
// with a loaded ledger.
func importSample(t *testing.T, srv *Server) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader(sampleCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	var preview importPreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Incomplete {
		t.Fatalf("canonical headers should map completely: %+v", preview)
	}

	rec2, confirm := doJSON(t, srv, http.MethodPost, "/imports/"+preview.Token+"/confirm", "{}")
	if rec2.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", rec2.Code, rec2.Body.String())
	}
	if confirm["imported"].(float64) != 3 {
		t.Fatalf("imported = %v, want 3", confirm["imported"])
	}
}

func TestImportFlow(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, ledger := doJSON(t, srv, http.MethodGet, "/ledger", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger status = %d", rec.Code)
	}
	txs := ledger["transactions"].([]any)
	if len(txs) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(txs))
	}
	first := txs[0].(map[string]any)
	if first["amount"] != "20000.00" || first["type"] != "Income" {
		t.Errorf("first row = %v, want stripped peso income first", first)
	}
}

func TestImportMappingOverride(t *testing.T) {
	srv := newTestServer(t)
	csv := "when,cost,what\n2024-04-03,450.00,food\n"
	req := httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var preview importPreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Mapping["Date"] != "when" || preview.Mapping["Amount"] != "cost" {
		t.Fatalf("inference = %v", preview.Mapping)
	}
	if preview.Mapping["Category"] != "" {
		t.Fatalf("'what' should not match Category: %v", preview.Mapping)
	}

	rec2, resp := doJSON(t, srv, http.MethodPost, "/imports/"+preview.Token+"/mapping",
		`{"fields":{"Category":"what"}}`)
	if rec2.Code != http.StatusOK {
		t.Fatalf("override status = %d: %s", rec2.Code, rec2.Body.String())
	}
	m := resp["mapping"].(map[string]any)
	if m["Category"] != "what" {
		t.Errorf("override not applied: %v", m)
	}
}

func TestImportUnknownToken(t *testing.T) {
	srv := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/imports/deadbeef/confirm", "{}")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestImportConfirmAllRowsInvalid(t *testing.T) {
	srv := newTestServer(t)
	csv := "Date,Amount,Category\n" +
		"not-a-date,450.00,Groceries\n" +
		"2024-03-05,free,Laundry\n"
	req := httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	var preview importPreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}

	rec2, body := doJSON(t, srv, http.MethodPost, "/imports/"+preview.Token+"/confirm", "{}")
	if rec2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm status = %d, want 422: %s", rec2.Code, rec2.Body.String())
	}
	dropped := body["dropped"].([]any)
	if len(dropped) != 2 {
		t.Fatalf("dropped = %d rows, want 2: %v", len(dropped), body)
	}
	first := dropped[0].(map[string]any)
	if first["row"].(float64) != 0 || first["field"] != "Date" || first["value"] != "not-a-date" {
		t.Errorf("first dropped row = %v, want row 0 Date not-a-date", first)
	}
	second := dropped[1].(map[string]any)
	if second["row"].(float64) != 1 || second["field"] != "Amount" {
		t.Errorf("second dropped row = %v, want row 1 Amount", second)
	}
}

func TestGoalLifecycleAndStashReclassify(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, _ := doJSON(t, srv, http.MethodPost, "/goals",
		`{"name":"Vacation Fund","target":"10000.00","emoji":"🏖️"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create goal status = %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate create conflicts.
	rec, _ = doJSON(t, srv, http.MethodPost, "/goals",
		`{"name":"vacation fund","target":"5.00"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate goal status = %d, want 409", rec.Code)
	}

	// Move row 2 (Laundry) into the stash goal.
	rec, _ = doJSON(t, srv, http.MethodPost, "/ledger/reclassify",
		`{"row":2,"type":"Stash","goal":"Vacation Fund"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reclassify status = %d: %s", rec.Code, rec.Body.String())
	}

	// Deleting a referenced goal is denied.
	rec, _ = doJSON(t, srv, http.MethodDelete, "/goals/Vacation%20Fund", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("delete referenced goal status = %d, want 409", rec.Code)
	}

	// Stash to an unknown goal is rejected.
	rec, _ = doJSON(t, srv, http.MethodPost, "/ledger/reclassify",
		`{"row":1,"type":"Stash","goal":"Car"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown goal status = %d, want 422", rec.Code)
	}

	rec, resp := doJSON(t, srv, http.MethodGet, "/metrics/goals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("goal metrics status = %d", rec.Code)
	}
	goals := resp["goals"].([]any)
	if len(goals) != 1 {
		t.Fatalf("goal metrics = %d entries", len(goals))
	}
	gm := goals[0].(map[string]any)
	if gm["saved"] != "89.50" {
		t.Errorf("saved = %v, want 89.50", gm["saved"])
	}
}

func TestBulkReclassify(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, resp := doJSON(t, srv, http.MethodPost, "/ledger/reclassify",
		`{"category":"Groceries","type":"Income"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp["updated"].(float64) != 1 {
		t.Errorf("updated = %v, want 1", resp["updated"])
	}
}

func TestReclassifyValidation(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, _ := doJSON(t, srv, http.MethodPost, "/ledger/reclassify",
		`{"row":0,"category":"Groceries","type":"Expense"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("both selectors status = %d, want 400", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodPost, "/ledger/reclassify",
		`{"row":0,"type":"Refund"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d, want 400", rec.Code)
	}
}

func TestAppendDefaults(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, _ := doJSON(t, srv, http.MethodPost, "/ledger/append", `{"amount":"125.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d: %s", rec.Code, rec.Body.String())
	}

	_, ledger := doJSON(t, srv, http.MethodGet, "/ledger", "")
	txs := ledger["transactions"].([]any)
	last := txs[len(txs)-1].(map[string]any)
	if last["category"] != "Misc" || last["account"] != "Cash" || last["type"] != "Expense" {
		t.Errorf("defaults not applied: %v", last)
	}
}

func TestMetricsSummaryAndMoM(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, sum := doJSON(t, srv, http.MethodGet, "/metrics/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	if sum["net"] != "19460.50" {
		t.Errorf("net = %v, want 19460.50", sum["net"])
	}

	rec, mom := doJSON(t, srv, http.MethodGet, "/metrics/mom?category=Groceries&month=2024-04-15", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mom status = %d", rec.Code)
	}
	month := mom["month"].(map[string]any)
	if month["defined"].(bool) {
		t.Errorf("MoM should be undefined with no prior month: %v", month)
	}

	rec, _ = doJSON(t, srv, http.MethodGet, "/metrics/mom", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing category status = %d, want 400", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/ledger/export.csv", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Date,Amount,Category,Notes,Type,Account\n") {
		t.Errorf("missing canonical header: %q", body)
	}
	if !strings.Contains(body, "2024-04-01,20000.00,Salary,,Income,Bank") {
		t.Errorf("missing canonical row: %q", body)
	}
}

func TestCohortsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	rec, resp := doJSON(t, srv, http.MethodGet, "/cohorts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cohorts status = %d", rec.Code)
	}
	// Two expense categories against K=3 forces the degenerate path.
	if resp["degenerate"] != true {
		t.Errorf("degenerate = %v, want true", resp["degenerate"])
	}
	if resp["k"].(float64) != 2 {
		t.Errorf("k = %v, want 2", resp["k"])
	}
}

func TestShutdownStopsJanitor(t *testing.T) {
	srv := newTestServer(t)
	done := make(chan struct{})
	go func() {
		srv.cleanupPending()
		close(done)
	}()
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine still running after shutdown")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}
