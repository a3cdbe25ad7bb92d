package sheets

import (
	"context"

	"pisopatrol/internal/core"
)

// Ports for inbound and outbound spreadsheet adapters.
type (
	// TableSource loads a raw, unmapped table from somewhere: a CSV
	// upload, a public Google Sheet, a fixture.
	TableSource interface {
		Load(ctx context.Context) (core.RawTable, error)
	}

	// RowAppender pushes canonical transaction rows to an external
	// sheet and returns a reference to the written range.
	RowAppender interface {
		AppendRows(ctx context.Context, rows [][]string) (rangeRef string, err error)
	}
)
