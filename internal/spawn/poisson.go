package spawn

import "math"

// poissonNormalCutoff is the mean above which Knuth's algorithm gets slow and
// a normal approximation is accurate enough.
const poissonNormalCutoff = 30.0

// Poisson samples a Poisson-distributed count with the given mean using
// Knuth's algorithm, switching to a rounded normal approximation for large
// means. A mean of zero returns zero without consuming randomness.
func (c *Calculator) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > poissonNormalCutoff {
		std := math.Sqrt(mean)
		val := int(math.Round(c.rng.NormFloat64()*std + mean))
		if val < 0 {
			return 0
		}
		return val
	}

	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for p > l {
		k++
		p *= c.rng.Float64()
	}
	return k - 1
}
