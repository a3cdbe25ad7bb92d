package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		neg   bool
		ok    bool
	}{
		{"450", 45000, false, true},
		{"450.00", 45000, false, true},
		{"1,234.50", 123450, false, true},
		{`"2,000"`, 200000, false, true},
		{"$99.99", 9999, false, true},
		{"₱450", 45000, false, true},
		{"-45", 4500, true, true},
		{"(45)", 4500, true, true},
		{"+12.34", 1234, false, true},
		{"12.344", 1234, false, true}, // rounds down
		{"12.345", 1235, false, true}, // half-up
		{"12.346", 1235, false, true},
		{"0", 0, false, true},
		{"", 0, false, false},
		{"abc", 0, false, false},
		{"1.2.3", 0, false, false},
		{"--5", 0, false, false},
	}
	for _, tc := range cases {
		cents, neg, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || cents != tc.cents || neg != tc.neg {
				t.Errorf("ParseAmount(%q) = (%d, %v, %v), want (%d, %v, nil)", tc.in, cents, neg, err, tc.cents, tc.neg)
			}
		} else if err == nil {
			t.Errorf("ParseAmount(%q) expected error", tc.in)
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		cents   int64
		decimal string
		display string
	}{
		{45000, "450.00", "450"},
		{45050, "450.50", "450.50"},
		{5, "0.05", "0.05"},
		{0, "0.00", "0"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if got := m.Decimal(); got != tc.decimal {
			t.Errorf("Decimal(%d) = %q, want %q", tc.cents, got, tc.decimal)
		}
		if got := m.Display(); got != tc.display {
			t.Errorf("Display(%d) = %q, want %q", tc.cents, got, tc.display)
		}
	}
}
