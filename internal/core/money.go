// Package core provides money parsing and handling utilities.
//
// Amounts are stored as integer cents. Parsing accepts the punctuation
// found in real bank and sheet exports: thousands commas, stray quotes,
// currency symbols, and sign-bearing forms (leading minus, parentheses).
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// currencyRunes are stripped before numeric parsing, matching the
// cleaning applied on import ($, peso, euro, pound, yen).
const currencyRunes = "$₱€£¥"

// ParseAmount converts a raw amount cell to positive cents plus the sign
// the source carried. The sign never reaches the stored Money; the
// normalizer uses it only to infer Income vs Expense when no Type column
// is mapped.
//
// Half-up rounding is applied on the third decimal place.
//
// Examples:
//
//	ParseAmount("1,234.50")  -> 123450, false, nil
//	ParseAmount("-45")       -> 4500, true, nil
//	ParseAmount("(45)")      -> 4500, true, nil
//	ParseAmount("₱12.345")   -> 1235, false, nil
func ParseAmount(s string) (cents int64, negative bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, ErrInvalidAmount
	}

	// Accounting-style parentheses mean negative.
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Strip quotes, thousands separators and currency symbols.
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == '"' || unicode.IsSpace(r) || strings.ContainsRune(currencyRunes, r) {
			return -1
		}
		return r
	}, s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, false, ErrInvalidAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, false, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, false, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, false, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, negative, nil
}

// Amount returns the value in currency units for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal renders the canonical export form with two decimals and no
// currency symbol, e.g. "450.00".
func (m Money) Decimal() string {
	neg := ""
	c := m.Cents
	if c < 0 {
		neg = "-"
		c = -c
	}
	return neg + strconv.FormatInt(c/100, 10) + "." + pad2(c%100)
}

// Display renders a compact form for prose, trimming a whole-unit ".00"
// ("450" rather than "450.00", but "450.50" stays).
func (m Money) Display() string {
	if m.Cents%100 == 0 {
		neg := ""
		c := m.Cents
		if c < 0 {
			neg = "-"
			c = -c
		}
		return neg + strconv.FormatInt(c/100, 10)
	}
	return m.Decimal()
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
