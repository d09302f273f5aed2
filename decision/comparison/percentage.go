package comparison

import "math"

// CalculatePercentageDifference returns the symmetric mean-relative difference
// of two rates in percent. Argument order does not matter; two zero rates
// yield 0.
func CalculatePercentageDifference(higherRate, lowerRate float64) float64 {
	sum := higherRate + lowerRate
	if sum == 0 {
		return 0
	}
	return math.Abs(higherRate-lowerRate) / (sum / 2) * 100
}

// CalculateMarkup returns how much more the dearer rate costs relative to the
// cheaper one, in percent. This is the value reported as an entry's
// percentage difference. Argument order does not matter. When the cheaper
// rate is zero the markup is unbounded, so the symmetric difference is used.
func CalculateMarkup(higherRate, lowerRate float64) float64 {
	hi, lo := higherRate, lowerRate
	if lo > hi {
		hi, lo = lo, hi
	}
	if lo == 0 {
		return CalculatePercentageDifference(hi, lo)
	}
	return (hi - lo) / lo * 100
}
