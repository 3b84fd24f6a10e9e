// Package mathx holds the small numeric primitives shared by the
// stutter model, the posterior engine, the EM re-estimator, and the
// bootstrap quality estimator: natural-log logsumexp with the
// standard max-subtraction trick, and the log10 conversion used only
// at the emission boundary (spec.md §9, "all likelihoods are kept in
// natural log throughout; conversion to log10 is done only at the
// emission boundary").
package mathx

import "math"

// NegInf stands in for "impossible" while remaining safe under
// subtraction, matching the -DBL_MAX/2 convention spec.md §9 calls
// for instead of actual -Inf (whose arithmetic is not safe to
// subtract from itself).
const NegInf = -math.MaxFloat64 / 2

// LogSumExp returns log(sum(exp(values))), computed with the
// max-subtraction trick. Ported from the same shape as
// log10SumLog10Slice in elPrep's filters/assigngls.go, but operating
// in natural log instead of log10.
func LogSumExp(values ...float64) float64 {
	return LogSumExpSlice(values)
}

// LogSumExpSlice is LogSumExp taking a slice directly, avoiding an
// allocation at call sites that already have a slice.
func LogSumExpSlice(values []float64) float64 {
	if len(values) == 0 {
		return NegInf
	}
	maxValue := values[0]
	for _, v := range values[1:] {
		if v > maxValue {
			maxValue = v
		}
	}
	if maxValue <= NegInf {
		return NegInf
	}
	var sum float64
	for _, v := range values {
		if v <= NegInf {
			continue
		}
		sum += math.Exp(v - maxValue)
	}
	return maxValue + math.Log(sum)
}

// LogSumExpPair is the two-value specialization of LogSumExp, used on
// the posterior engine's hot accumulation path (spec.md §4.5) where
// allocating a slice for every read×genotype pair would dominate the
// cost.
func LogSumExpPair(a, b float64) float64 {
	if a <= NegInf && b <= NegInf {
		return NegInf
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}

// Log10 converts a natural-log value to log10, used only at the
// emission boundary.
func Log10(natural float64) float64 {
	return natural / math.Ln10
}

// Max returns the greater of a and b.
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
