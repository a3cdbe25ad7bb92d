package mapping

import (
	"errors"
	"reflect"
	"testing"

	"pisopatrol/internal/core"
)

func TestScore(t *testing.T) {
	cases := []struct {
		field  string
		header string
		want   float64
	}{
		{FieldDate, "Date", 1.0},
		{FieldDate, "  DATE ", 1.0},
		{FieldAmount, "amt", 0.9},
		{FieldAmount, "cost", 0.9},
		{FieldNotes, "memo", 0.9},
		{FieldNotes, "desc", 0.9},
		{FieldDate, "transaction_date", 0.9},
		{FieldAmount, "total_amount", 0.6},
		{FieldCategory, "spend category", 0.6},
		{FieldDate, "balance", 0.0},
		{FieldAmount, "", 0.0},
	}
	for _, tc := range cases {
		if got := Score(tc.field, tc.header); got != tc.want {
			t.Errorf("Score(%s, %q) = %v, want %v", tc.field, tc.header, got, tc.want)
		}
	}
}

func TestInferStandardHeaders(t *testing.T) {
	headers := []string{"Date", "Amount", "Category", "Notes", "Type", "Account"}
	m := Infer(headers)
	if m.Incomplete() {
		t.Fatal("standard headers should map completely")
	}
	for _, f := range CanonicalFields {
		col, ok := m.Source(f)
		if !ok || col != f {
			t.Errorf("field %s mapped to %q", f, col)
		}
	}
}

func TestInferSynonymHeaders(t *testing.T) {
	// Synonym-only headers bind Date and Amount but leave
	// Category/Type/Account unmapped.
	headers := []string{"when", "cost", "what"}
	m := Infer(headers)
	if m.Incomplete() {
		t.Fatal("when/cost should satisfy the mandatory fields")
	}
	if col, _ := m.Source(FieldDate); col != "when" {
		t.Errorf("Date mapped to %q, want when", col)
	}
	if col, _ := m.Source(FieldAmount); col != "cost" {
		t.Errorf("Amount mapped to %q, want cost", col)
	}
	if _, ok := m.Source(FieldCategory); ok {
		t.Error("Category should stay unmapped")
	}
	if _, ok := m.Source(FieldType); ok {
		t.Error("Type should stay unmapped")
	}
	if _, ok := m.Source(FieldAccount); ok {
		t.Error("Account should stay unmapped")
	}
}

func TestInferIncomplete(t *testing.T) {
	m := Infer([]string{"foo", "bar", "baz"})
	if !m.Incomplete() {
		t.Fatal("unmatchable headers must yield an incomplete mapping")
	}
	if err := m.Validate(); !errors.Is(err, core.ErrMappingIncomplete) {
		t.Fatalf("Validate() = %v, want ErrMappingIncomplete", err)
	}
}

func TestInferIdempotent(t *testing.T) {
	headers := []string{"Posted", "debit", "memo", "card"}
	a := Infer(headers)
	b := Infer(headers)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("inference not idempotent: %+v vs %+v", a, b)
	}
}

func TestInferClaimsColumnOnce(t *testing.T) {
	// A single "amount" column must not serve both Amount and a weaker
	// substring match for another field.
	headers := []string{"date", "amount"}
	m := Infer(headers)
	if col, _ := m.Source(FieldAmount); col != "amount" {
		t.Fatalf("Amount mapped to %q", col)
	}
	for _, f := range []string{FieldCategory, FieldNotes, FieldType, FieldAccount} {
		if col, ok := m.Source(f); ok {
			t.Errorf("field %s unexpectedly bound to %q", f, col)
		}
	}
}

func TestOverride(t *testing.T) {
	m := Infer([]string{"foo", "bar"})
	m2 := m.Override(FieldDate, "foo").Override(FieldAmount, "bar")
	if m2.Incomplete() {
		t.Fatal("manual overrides should complete the mapping")
	}
	// Original untouched.
	if !m.Incomplete() {
		t.Fatal("Override must not mutate the receiver")
	}
	m3 := m2.Override(FieldDate, "")
	if !m3.Incomplete() {
		t.Fatal("unbinding Date must mark the mapping incomplete")
	}
}
