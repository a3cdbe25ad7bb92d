// Package google adapts Google Sheets to the table ports: a read-only
// source for public spreadsheets and an authenticated appender used by
// the sync worker.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pisopatrol/internal/core"
	ports "pisopatrol/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Reader loads a public ("anyone with the link") spreadsheet range
// using only an API key.
type Reader struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

var _ ports.TableSource = (*Reader)(nil)

// NewReader builds a reader for one spreadsheet. ref may be a full
// spreadsheet URL or a bare spreadsheet ID. readRange defaults to the
// first sheet when empty.
func NewReader(ctx context.Context, apiKey, ref, readRange string) (*Reader, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("missing sheets api key")
	}
	id, err := SpreadsheetID(ref)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, goption.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if readRange == "" {
		readRange = "A:Z"
	}
	return &Reader{svc: svc, spreadsheetID: id, readRange: readRange}, nil
}

// Load fetches the configured range and splits the first row off as
// headers.
func (r *Reader) Load(ctx context.Context) (core.RawTable, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, r.readRange).Context(ctx).Do()
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read %s from %s: %w", r.readRange, r.spreadsheetID, err)
	}
	if len(resp.Values) == 0 {
		return core.RawTable{}, fmt.Errorf("spreadsheet %s: empty range %s", r.spreadsheetID, r.readRange)
	}
	table := core.RawTable{Headers: toStrings(resp.Values[0])}
	for _, row := range resp.Values[1:] {
		table.Rows = append(table.Rows, toStrings(row))
	}
	slog.InfoContext(ctx, "loaded spreadsheet range",
		"spreadsheet_id", r.spreadsheetID, "rows", len(table.Rows))
	return table, nil
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

// Appender writes canonical rows to a spreadsheet the service account
// can edit.
type Appender struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.RowAppender = (*Appender)(nil)

// NewAppenderFromEnv creates an authenticated appender.
// Required: EXPORT_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
// Optional: EXPORT_SHEET_NAME (default "Transactions").
func NewAppenderFromEnv(ctx context.Context) (*Appender, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("EXPORT_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing EXPORT_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("EXPORT_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Transactions"
	}
	svc, err := newAuthedService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Appender{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func newAuthedService(ctx context.Context) (*gsheet.Service, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// AppendRows appends rows after the sheet's existing data and returns
// the updated range reference.
func (a *Appender) AppendRows(ctx context.Context, rows [][]string) (string, error) {
	if a.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", nil
	}
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	rng := fmt.Sprintf("%s!A:F", a.sheetName)
	resp, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", a.sheetName, err)
	}
	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
