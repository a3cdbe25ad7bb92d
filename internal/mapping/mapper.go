// Package mapping infers which raw columns of an arbitrary export
// correspond to the canonical transaction fields. Matching is an explicit
// synonym table plus a similarity score with a documented threshold, so
// the behavior is testable rather than hidden heuristics.
package mapping

import (
	"strings"

	"pisopatrol/internal/core"
)

// Canonical field names, in inference priority order.
const (
	FieldDate     = "Date"
	FieldAmount   = "Amount"
	FieldCategory = "Category"
	FieldNotes    = "Notes"
	FieldType     = "Type"
	FieldAccount  = "Account"
)

// CanonicalFields lists every field a mapping can bind, mandatory first.
var CanonicalFields = []string{FieldDate, FieldAmount, FieldCategory, FieldNotes, FieldType, FieldAccount}

// Confidence levels produced by Score.
const (
	scoreExact     = 1.0
	scoreSynonym   = 0.9
	scoreSubstring = 0.6
)

// DefaultThreshold is the minimum confidence for an automatic binding.
// Substring matches (0.6) pass; anything weaker needs manual mapping.
const DefaultThreshold = 0.5

// synonyms maps each canonical field to header words seen in the wild.
var synonyms = map[string][]string{
	FieldDate:     {"day", "when", "posted", "transaction date", "txn date", "booking date"},
	FieldAmount:   {"amt", "cost", "value", "price", "total", "debit", "sum"},
	FieldCategory: {"cat", "group", "bucket", "subcategory"},
	FieldNotes:    {"note", "desc", "description", "memo", "details", "remarks", "merchant"},
	FieldType:     {"kind", "direction", "flow", "income/expense"},
	FieldAccount:  {"acct", "source", "wallet", "bank", "card"},
}

// FieldMapping binds canonical fields to source column names. An absent
// or empty entry means unmapped. Consumed exactly once by the normalizer.
type FieldMapping struct {
	Fields     map[string]string
	Confidence map[string]float64
}

// Source returns the bound column for a canonical field, if any.
func (m FieldMapping) Source(field string) (string, bool) {
	col, ok := m.Fields[field]
	if !ok || col == "" {
		return "", false
	}
	return col, true
}

// Incomplete reports whether a mandatory field (Date, Amount) is unbound.
func (m FieldMapping) Incomplete() bool {
	if _, ok := m.Source(FieldDate); !ok {
		return true
	}
	if _, ok := m.Source(FieldAmount); !ok {
		return true
	}
	return false
}

// Validate mirrors the pipeline gate: an incomplete mapping blocks
// normalization and must be resolved manually.
func (m FieldMapping) Validate() error {
	if m.Incomplete() {
		return core.ErrMappingIncomplete
	}
	return nil
}

// Override rebinds a canonical field to an explicit user-chosen column
// with full confidence. An empty column unbinds the field.
func (m FieldMapping) Override(field, column string) FieldMapping {
	out := FieldMapping{
		Fields:     make(map[string]string, len(m.Fields)+1),
		Confidence: make(map[string]float64, len(m.Confidence)+1),
	}
	for k, v := range m.Fields {
		out.Fields[k] = v
	}
	for k, v := range m.Confidence {
		out.Confidence[k] = v
	}
	if column == "" {
		delete(out.Fields, field)
		delete(out.Confidence, field)
		return out
	}
	out.Fields[field] = column
	out.Confidence[field] = scoreExact
	return out
}

// Score rates how well a source header matches a canonical field, in
// [0, 1]. Exact (case-insensitive) field name 1.0, synonym 0.9,
// substring either way 0.6, no match 0.
func Score(field, header string) float64 {
	h := normalizeHeader(header)
	if h == "" {
		return 0
	}
	f := strings.ToLower(field)
	if h == f {
		return scoreExact
	}
	for _, syn := range synonyms[field] {
		if h == syn {
			return scoreSynonym
		}
	}
	if strings.Contains(h, f) || strings.Contains(f, h) {
		return scoreSubstring
	}
	for _, syn := range synonyms[field] {
		if strings.Contains(h, syn) || strings.Contains(syn, h) {
			return scoreSubstring
		}
	}
	return 0
}

// Infer produces a mapping for the given headers with DefaultThreshold.
// Pure function of the headers: re-running yields the same result.
func Infer(headers []string) FieldMapping {
	return InferWithThreshold(headers, DefaultThreshold)
}

// InferWithThreshold binds each canonical field to its best-scoring
// unclaimed column. Fields are processed in CanonicalFields order so a
// column can serve only one field, deterministically.
func InferWithThreshold(headers []string, threshold float64) FieldMapping {
	m := FieldMapping{
		Fields:     make(map[string]string),
		Confidence: make(map[string]float64),
	}
	claimed := make(map[int]bool, len(headers))
	for _, field := range CanonicalFields {
		bestIdx := -1
		bestScore := 0.0
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			if s := Score(field, h); s > bestScore {
				bestIdx, bestScore = i, s
			}
		}
		if bestIdx >= 0 && bestScore >= threshold {
			claimed[bestIdx] = true
			m.Fields[field] = headers[bestIdx]
			m.Confidence[field] = bestScore
		}
	}
	return m
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, `"'`)
	return strings.Join(strings.Fields(strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' {
			return ' '
		}
		return r
	}, h)), " ")
}
