// Package money provides the fixed-point decimal arithmetic invariant 2 of
// the data model requires: 2 fractional digits, round-half-to-even at
// display. Amounts are carried as float64 dollars through the engines (the
// source data itself is float64 once it leaves the store) and only rounded
// at the boundaries that emit a number a caller will display or sum into a
// report — see DESIGN.md for why this stays on the standard library rather
// than github.com/shopspring/decimal or math/big.Rat.
package money

import "math"

// Round2 rounds v to 2 decimal places using round-half-to-even (banker's
// rounding), matching IEEE 754 roundTiesToEven semantics at the cent scale.
func Round2(v float64) float64 {
	scaled := v * 100
	floor := math.Floor(scaled)
	diff := scaled - floor

	switch {
	case diff < 0.5:
		return floor / 100
	case diff > 0.5:
		return (floor + 1) / 100
	default:
		// Exactly halfway: round to the nearest even integer.
		if math.Mod(floor, 2) == 0 {
			return floor / 100
		}
		return (floor + 1) / 100
	}
}

// NonNegative clamps v to zero; monetary fields must never go negative
// (invariant 2).
func NonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
