// Package csvfile adapts CSV input, uploaded bytes or a file on disk,
// to the raw table port.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"pisopatrol/internal/core"
	ports "pisopatrol/internal/sheets"
)

type Source struct {
	open func() (io.ReadCloser, error)
}

var _ ports.TableSource = (*Source)(nil)

// FromBytes wraps an in-memory CSV document, typically an upload body.
func FromBytes(data []byte) *Source {
	return &Source{open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

// FromPath reads the CSV file at path on each Load.
func FromPath(path string) *Source {
	return &Source{open: func() (io.ReadCloser, error) {
		return os.Open(path)
	}}
}

func (s *Source) Load(ctx context.Context) (core.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return core.RawTable{}, err
	}
	rc, err := s.open()
	if err != nil {
		return core.RawTable{}, fmt.Errorf("open csv: %w", err)
	}
	defer rc.Close()
	return Parse(rc)
}

// Parse reads a CSV document into a raw table. The first record is the
// header row; ragged rows are tolerated and resolved downstream.
func Parse(r io.Reader) (core.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.RawTable{}, errors.New("empty csv document")
	}
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.RawTable{}, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}
	return core.RawTable{Headers: header, Rows: rows}, nil
}
