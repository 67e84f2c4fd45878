// Package money parses the amount notations operators type or legacy
// columns hold ("1.500,00", "1500,00", "1500.00", "1500") into exact
// two-digit decimals.
//
// Separator policy: when both '.' and ',' occur, the right-most one is the
// decimal point and the other groups thousands. When only one kind occurs
// exactly once, it is the decimal point if 1 or 2 digits follow it and a
// thousands separator if exactly 3 follow; anything else is rejected. A
// separator kind occurring more than once is always a thousands separator
// and every group after the first must hold exactly 3 digits. Inputs that
// do not fit are rejected instead of guessed.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount carries.
const Scale = 2

// maxIntegerDigits matches numeric(12,2) storage.
const maxIntegerDigits = 10

var (
	// ErrNotANumber is returned for empty or unparseable input.
	ErrNotANumber = errors.New("money: not a number")
	// ErrPrecision is returned when an amount cannot be stored or is negative where disallowed.
	ErrPrecision = errors.New("money: precision")
)

// Parse normalizes text into a decimal rounded half away from zero to Scale digits.
func Parse(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		negative = s[0] == '-'
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, text)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, text)
		}
	}

	decimalSep, thousandSep, err := separators(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrNotANumber, text, err)
	}

	intPart, fracPart := s, ""
	if decimalSep != 0 {
		idx := strings.LastIndexByte(s, decimalSep)
		intPart, fracPart = s[:idx], s[idx+1:]
		if fracPart == "" {
			return decimal.Zero, fmt.Errorf("%w: %q: empty fraction", ErrNotANumber, text)
		}
	}
	digits, err := ungroup(intPart, thousandSep)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrNotANumber, text, err)
	}
	if digits == "" {
		if fracPart == "" {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, text)
		}
		digits = "0"
	}
	if len(strings.TrimLeft(digits, "0")) > maxIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d integer digits", ErrPrecision, text, maxIntegerDigits)
	}

	literal := digits
	if fracPart != "" {
		literal += "." + fracPart
	}
	value, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, text)
	}
	value = value.Round(Scale)
	if negative {
		value = value.Neg()
	}
	if !fits(value) {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d integer digits", ErrPrecision, text, maxIntegerDigits)
	}
	return value, nil
}

// ParseNonNegative is Parse for amounts that may not be negative.
func ParseNonNegative(text string) (decimal.Decimal, error) {
	value, err := Parse(text)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %q", ErrPrecision, text)
	}
	return value, nil
}

// OrZero parses optional display values; unparseable input reads as zero.
// Never use it for amounts about to be persisted.
func OrZero(text string) decimal.Decimal {
	value, err := Parse(text)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// Format renders the canonical form, e.g. "1500.00".
func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

// Round rounds a computed amount to Scale digits.
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(Scale)
}

// Fits reports whether value can be stored with the configured precision.
func Fits(value decimal.Decimal) bool {
	return fits(value)
}

func fits(value decimal.Decimal) bool {
	limit := decimal.New(1, maxIntegerDigits)
	return value.Abs().LessThan(limit)
}

func separators(s string) (decimalSep, thousandSep byte, err error) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		lastDot := strings.LastIndexByte(s, '.')
		lastComma := strings.LastIndexByte(s, ',')
		decimalSep, thousandSep = byte('.'), byte(',')
		if lastComma > lastDot {
			decimalSep, thousandSep = ',', '.'
		}
		if strings.Count(s, string(decimalSep)) > 1 {
			return 0, 0, errors.New("ambiguous separators")
		}
		return decimalSep, thousandSep, nil
	case dots == 0 && commas == 0:
		return 0, 0, nil
	}

	sep := byte('.')
	count := dots
	if commas > 0 {
		sep, count = ',', commas
	}
	if count > 1 {
		return 0, sep, nil
	}
	trailing := len(s) - strings.IndexByte(s, sep) - 1
	switch {
	case trailing == 1 || trailing == 2:
		return sep, 0, nil
	case trailing == 3:
		return 0, sep, nil
	default:
		return 0, 0, fmt.Errorf("cannot tell decimal from grouping with %d trailing digits", trailing)
	}
}

func ungroup(intPart string, thousandSep byte) (string, error) {
	if thousandSep == 0 || !strings.Contains(intPart, string(thousandSep)) {
		if strings.ContainsAny(intPart, ".,") {
			return "", errors.New("misplaced separator")
		}
		return intPart, nil
	}
	groups := strings.Split(intPart, string(thousandSep))
	for i, group := range groups {
		if strings.ContainsAny(group, ".,") {
			return "", errors.New("misplaced separator")
		}
		if i == 0 {
			if len(group) == 0 || len(group) > 3 {
				return "", errors.New("bad leading group")
			}
			continue
		}
		if len(group) != 3 {
			return "", errors.New("thousands groups must have 3 digits")
		}
	}
	return strings.Join(groups, ""), nil
}
