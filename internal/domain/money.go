package domain

import "github.com/shopspring/decimal"

// Shared decimal constants. Money and probabilities never go through float64
// except for display.
var (
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
)

// Clamp bounds d into [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// USD formats a cash amount the way the console and logs show it.
func USD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Pct formats a fraction (0.05) as a percentage string ("5.0%").
func Pct(d decimal.Decimal) string {
	return d.Mul(Hundred).StringFixed(1) + "%"
}
