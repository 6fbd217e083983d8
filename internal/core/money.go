// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point decimals with two fractional digits, held as
// signed integer cents so that sums are exact.
package core

import (
	"math"
	"strconv"
	"strings"
)

// MaxAmountCents is the largest magnitude a DECIMAL(10,2) column can hold.
const MaxAmountCents int64 = 99_999_999_99

// ParseAmount converts a decimal string to signed cents.
//
// It accepts an optional leading sign, both dot (12.34) and comma (12,34)
// decimal separators, and an exponent (1.5e2), as a DECIMAL column does. Digits past the second fractional place are rounded
// half away from zero, the way a DECIMAL(10,2) column rounds on insert.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("-4.5")   -> -450
//	ParseAmount("0")      -> 0
//	ParseAmount("1e2")    -> 10000
//	ParseAmount("1.005")  -> 101
//	ParseAmount("-1.005") -> -101
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: "amount", Reason: "is required"}
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	mantissa, exponent, hasExp := cutExponent(s)
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	if intPart == "" && fracPart == "" {
		return Money{}, invalidAmount()
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Money{}, invalidAmount()
	}
	if hasExp {
		exp, err := parseExponent(exponent)
		if err != nil {
			return Money{}, err
		}
		intPart, fracPart, err = shiftPoint(intPart, fracPart, exp)
		if err != nil {
			return Money{}, err
		}
	}
	// Leading zeros would otherwise count against the length check below.
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if len(intPart) > 8 {
		return Money{}, outOfRange()
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, invalidAmount()
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
		}
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			frac++
		}
	}

	cents := iv*100 + frac
	if cents > MaxAmountCents {
		return Money{}, outOfRange()
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

func cutExponent(s string) (mantissa, exponent string, ok bool) {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// parseExponent reads a signed decimal exponent. Values too large for an
// int saturate; shiftPoint bounds them anyway.
func parseExponent(s string) (int, error) {
	digits := strings.TrimLeft(s, "+-")
	if digits == "" || len(s)-len(digits) > 1 || !allDigits(digits) {
		return 0, invalidAmount()
	}
	exp, err := strconv.Atoi(s)
	if err != nil {
		if s[0] == '-' {
			return math.MinInt32, nil
		}
		return math.MaxInt32, nil
	}
	return exp, nil
}

// shiftPoint moves the decimal point of intPart.fracPart by exp places.
// Exponents that push a nonzero value past DECIMAL(10,2) fail; exponents
// small enough to round the value to zero are clamped first.
func shiftPoint(intPart, fracPart string, exp int) (string, string, error) {
	digits := intPart + fracPart
	if strings.Trim(digits, "0") == "" {
		return "0", "", nil
	}
	if exp > len(digits)+12 {
		return "", "", outOfRange()
	}
	if exp < -(len(digits) + 3) {
		exp = -(len(digits) + 3)
	}

	point := len(intPart) + exp
	switch {
	case point <= 0:
		return "0", strings.Repeat("0", -point) + digits, nil
	case point >= len(digits):
		return digits + strings.Repeat("0", point-len(digits)), "", nil
	default:
		return digits[:point], digits[point:], nil
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func invalidAmount() error {
	return &ValidationError{Field: "amount", Reason: "must be a decimal number"}
}

func outOfRange() error {
	return &ValidationError{Field: "amount", Reason: "is out of range"}
}

func (m Money) Validate() error {
	if m.Cents > MaxAmountCents || m.Cents < -MaxAmountCents {
		return outOfRange()
	}
	return nil
}

// String formats the amount with exactly two decimals, e.g. "-4.50".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	rem := strconv.FormatInt(cents%100, 10)
	if len(rem) == 1 {
		rem = "0" + rem
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + rem
}

// MarshalJSON emits the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return &ValidationError{Field: "amount", Reason: "is required"}
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
