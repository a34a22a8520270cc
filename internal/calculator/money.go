// Package calculator implements the balance and settlement engine: split
// resolution, balance aggregation, debt extraction, and settlement planning.
//
// Every function here is pure. Given the same snapshot of expenses it
// produces the same output: no internal state, no randomness, no clock.
// Monetary values are fixed-precision decimals throughout; rounding to
// currency precision happens only at persistence and display boundaries.
package calculator

import "github.com/shopspring/decimal"

var (
	// Epsilon is the near-zero threshold. Balances, debts, and plan
	// remainders at or below it are treated as settled.
	Epsilon = decimal.NewFromFloat(0.01)

	// SumTolerance is how far supplied percentages (against 100) or custom
	// split amounts (against the expense total) may drift before the split
	// is rejected.
	SumTolerance = decimal.NewFromFloat(0.05)

	cent    = decimal.NewFromFloat(0.01)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// RoundMoney rounds to currency precision (two decimal places).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NearZero reports whether d is within Epsilon of zero.
func NearZero(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(Epsilon)
}

// WithinTolerance reports whether a and b differ by at most SumTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(SumTolerance)
}
