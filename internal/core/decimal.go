package core

import "github.com/shopspring/decimal"

// Epsilon is the tolerance for quantity comparisons (fill completion,
// position flatness, reconciliation size matching).
var Epsilon = decimal.New(1, -9)

// RoundHalfUp rounds to the given number of decimal places, halves away from
// zero. Applied exactly once, at the venue boundary, to every outgoing price
// and quantity.
func RoundHalfUp(d decimal.Decimal, places int) decimal.Decimal {
	return d.Round(int32(places))
}

// WithinEpsilon reports whether a and b differ by at most Epsilon
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
