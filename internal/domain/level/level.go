// Package level maps cumulative experience to a user level.
package level

import "math"

// expPerStep scales experience before the square root.
const expPerStep = 5.0

// Of returns floor(1 + sqrt(max(0, exp/5 - 1))).
//
// It is monotonic non-decreasing in exp and Of(0) == 1. Ledger entries
// never store a level that was not produced by this function.
func Of(exp int64) int {
	x := float64(exp)/expPerStep - 1
	if x < 0 {
		x = 0
	}
	return int(math.Floor(1 + math.Sqrt(x)))
}

// Threshold returns the smallest experience that reaches lvl.
func Threshold(lvl int) int64 {
	if lvl <= 1 {
		return 0
	}
	n := int64(lvl - 1)
	return expPerStep * (n*n + 1)
}
