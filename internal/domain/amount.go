package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimals is the decimal scale shared by every asset: one whole token
// is 10^18 base units.
const Decimals = 18

var unit = decimal.New(1, Decimals)

// Tokens converts a count of whole tokens to base units.
func Tokens(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Mul(unit)
}

// ValidAmount reports whether d is a non-negative whole number of base units.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.IsInteger()
}

// ParseUnits converts a decimal string expressed in whole tokens (e.g.
// "10.5") to base units. It rejects negative values and values with more
// than Decimals fractional digits.
func ParseUnits(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a decimal number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must be >= 0")
	}
	base := d.Mul(unit)
	if !base.IsInteger() {
		return decimal.Zero, fmt.Errorf("amounts must have at most %d decimal places", Decimals)
	}
	return base.Truncate(0), nil
}

// FormatUnits renders base units as a whole-token decimal string without
// trailing zeros.
func FormatUnits(base decimal.Decimal) string {
	return base.Shift(-Decimals).String()
}
