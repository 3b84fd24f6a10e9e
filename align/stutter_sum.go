package align

import (
	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/mathx"
)

// stretchRepeat returns a copy of the repeat block's alternate seq
// adjusted by delta base pairs, modeling "haplotype_k stretched by Δ
// bp" (spec.md §4.4 step 2). Positive delta tiles additional copies
// of the trailing period-length unit onto the end (an expansion),
// stopping after exactly delta bases, so an out-of-frame delta appends
// a partial unit that starts with the unit's first base; negative
// delta trims |delta| bases from the end (a contraction). When period
// is not positive or exceeds the sequence length, a one-base unit (the
// trailing base) is used instead.
func stretchRepeat(seq []byte, delta int32, period int32) []byte {
	if delta == 0 {
		return seq
	}
	unit := int(period)
	if unit <= 0 || unit > len(seq) {
		unit = 1
	}
	if delta > 0 {
		tail := seq[len(seq)-unit:]
		out := append([]byte(nil), seq...)
		for added := int32(0); added < delta; {
			for _, b := range tail {
				if added >= delta {
					break
				}
				out = append(out, b)
				added++
			}
		}
		return out
	}
	cut := int(-delta)
	if cut >= len(seq) {
		cut = len(seq) - 1
	}
	return seq[:len(seq)-cut]
}

// deltaTerm is one stutter-offset's contribution to the sum-over-
// stutter likelihood: the stutter prior, the inner alignment
// log-likelihood against the stretched haplotype, and their sum.
type deltaTerm struct {
	delta   int32
	total   float64
	forward float64
}

// stutterTerms evaluates every delta in the stutter model's support
// for candidate allele k, skipping offsets the stutter model assigns
// zero probability to (spec.md §4.4 step 2's sum is over
// "Δ ∈ stutter_support", and support is zero outside the model's
// bounds or direction weights).
func stutterTerms(bases string, quals []byte, hap haplotype.Haplotype, k int) []deltaTerm {
	allele := hap.Repeat.Alternates[k]
	model := hap.Repeat.Stutter
	support := model.Support()
	terms := make([]deltaTerm, 0, len(support))
	for _, delta := range support {
		prior := model.LogProbArtifact(int32(len(allele)), delta)
		if prior <= mathx.NegInf {
			continue
		}
		stretched := stretchRepeat(allele, delta, model.Period)
		hapBases := make([]byte, 0, len(hap.Left.Alternates[0])+len(stretched)+len(hap.Right.Alternates[0]))
		hapBases = append(hapBases, hap.Left.Alternates[0]...)
		hapBases = append(hapBases, stretched...)
		hapBases = append(hapBases, hap.Right.Alternates[0]...)
		forward := forwardLogLikelihood(bases, quals, hapBases)
		terms = append(terms, deltaTerm{delta: delta, forward: forward, total: prior + forward})
	}
	return terms
}

// sumLogLikelihood returns log P(read | haplotype_k), marginalized
// over stutter (spec.md §4.4 step 2).
func sumLogLikelihood(bases string, quals []byte, hap haplotype.Haplotype, k int) float64 {
	terms := stutterTerms(bases, quals, hap, k)
	if len(terms) == 0 {
		return mathx.NegInf
	}
	totals := make([]float64, len(terms))
	for i, t := range terms {
		totals[i] = t.total
	}
	return mathx.LogSumExpSlice(totals)
}

// bestDelta returns the stutter offset maximizing the joint
// stutter-prior + alignment term, used by the traceback (spec.md
// §4.4 step 4: "the integer stutter size applied to the repeat
// block").
func bestDelta(bases string, quals []byte, hap haplotype.Haplotype, k int) int32 {
	terms := stutterTerms(bases, quals, hap, k)
	if len(terms) == 0 {
		return 0
	}
	best := terms[0]
	for _, t := range terms[1:] {
		if t.total > best.total {
			best = t
		}
	}
	return best.delta
}
