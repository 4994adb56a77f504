package engine

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Fee returns amount × percent / 100, truncated toward zero to a whole
// base unit.
func Fee(amount decimal.Decimal, percent int64) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(percent)).QuoRem(hundred, 0)
	return q
}
