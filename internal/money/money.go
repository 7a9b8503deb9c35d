// Package money provides 2-decimal currency arithmetic helpers.
//
// Every amount stored by the billing core is rounded to 2 decimals at the
// boundary, so downstream sums and comparisons operate on exact cent values.
package money

import "math"

// Round2 rounds to 2 decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Line computes a line total (price x quantity) rounded to 2 decimals.
func Line(price float64, quantity int) float64 {
	return Round2(price * float64(quantity))
}

// Equal reports whether two amounts are the same cent value.
func Equal(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
