package domain

import (
	"fmt"
	"math"
)

// All monetary values in this core are computed and compared as integer pence
// to avoid floating-point drift. Only display output is formatted in pounds.

// FormatPence renders an amount of pence as a pounds string with two decimal
// places, e.g. 4750 → "47.50". Negative amounts keep their sign.
func FormatPence(p int64) string {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)
}

// PenceFromFloat converts a fractional pence amount to whole pence using
// round-half-up, the rounding mode used for all fare arithmetic.
func PenceFromFloat(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// ScalePence multiplies an integer pence amount by num/den with round-half-up,
// staying in integer arithmetic throughout. Used for percentage multipliers
// (night uplift) and VAT in basis points.
func ScalePence(amount, num, den int64) int64 {
	return (amount*num + den/2) / den
}
