// Package posterior implements the E-step (spec.md §4.5, component
// C5): combining the log-alignment matrix A with per-read SNP-phasing
// log-priors into a per-sample log-posterior tensor over ordered
// diploid (or haploid) genotypes.
//
// Grounded on elPrep's filters/assigngls.go
// computeTwoComponentGenotypeLikelihood / log10SumLog10Slice, which
// combine two per-allele per-read log-likelihoods into a per-genotype
// log-likelihood the same way, generalized here from a fixed ploidy-2
// VCF-style computation into the full per-sample ordered-pair tensor
// this core's refiner and bootstrap estimator both need to read back.
package posterior

import (
	"math"

	"github.com/exascience/strcall/align"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/read"
)

var logHalf = math.Log(0.5)

// Tensor is the dense (num_alleles, num_alleles, num_samples)
// log-posterior array P (spec.md §3).
type Tensor struct {
	NumAlleles int
	NumSamples int
	data       []float64
}

func newTensor(numAlleles, numSamples int) *Tensor {
	return &Tensor{NumAlleles: numAlleles, NumSamples: numSamples, data: make([]float64, numAlleles*numAlleles*numSamples)}
}

func (t *Tensor) index(a, b, s int) int {
	return (a*t.NumAlleles+b)*t.NumSamples + s
}

// At returns P[a, b, s].
func (t *Tensor) At(a, b, s int) float64 { return t.data[t.index(a, b, s)] }

// Set assigns P[a, b, s] = v.
func (t *Tensor) Set(a, b, s int, v float64) { t.data[t.index(a, b, s)] = v }

// Add accumulates P[a, b, s] += v, the accumulation rule spec.md §4.5
// uses for per-read contributions atop the initialized prior.
func (t *Tensor) Add(a, b, s int, v float64) { t.data[t.index(a, b, s)] += v }

// Clone returns a deep copy, used so prior initialization never
// aliases the tensor the caller goes on to accumulate into.
func (t *Tensor) Clone() *Tensor {
	next := newTensor(t.NumAlleles, t.NumSamples)
	copy(next.data, t.data)
	return next
}

// NewDiploidPrior returns the default diploid prior (spec.md §4.5):
// every unordered genotype has equal prior 2/(n(n+1)); the ordered
// tensor stores 1/(n(n+1)) for heterozygous ordered cells and
// 2/(n(n+1)) for homozygous cells, in log space.
func NewDiploidPrior(numAlleles, numSamples int) *Tensor {
	n := float64(numAlleles)
	het := math.Log(1 / (n * (n + 1)))
	hom := math.Log(2 / (n * (n + 1)))
	t := newTensor(numAlleles, numSamples)
	for a := 0; a < numAlleles; a++ {
		for b := 0; b < numAlleles; b++ {
			v := het
			if a == b {
				v = hom
			}
			for s := 0; s < numSamples; s++ {
				t.Set(a, b, s, v)
			}
		}
	}
	return t
}

// NewHaploidPrior returns the default haploid prior (spec.md §4.5):
// off-diagonal cells get a large-negative sentinel, diagonal cells
// get a uniform 1/n.
func NewHaploidPrior(numAlleles, numSamples int) *Tensor {
	uniform := math.Log(1 / float64(numAlleles))
	t := newTensor(numAlleles, numSamples)
	for i := range t.data {
		t.data[i] = mathx.NegInf
	}
	for a := 0; a < numAlleles; a++ {
		for s := 0; s < numSamples; s++ {
			t.Set(a, a, s, uniform)
		}
	}
	return t
}

// FromExternal wraps an externally supplied per-sample allele-pair
// log-prior tensor (spec.md §4.5: "if external priors are supplied,
// copy them in"), data laid out in the same (a, b, s) row-major order
// Tensor itself uses.
func FromExternal(numAlleles, numSamples int, data []float64) *Tensor {
	t := newTensor(numAlleles, numSamples)
	copy(t.data, data)
	return t
}

// Compute runs the full E-step: accumulates every read's contribution
// onto a copy of prior, then normalizes per sample (spec.md §4.5).
// sampleIndex[r] gives the sample index of record r; weights may be
// nil for the default weight of 1 for every read.
func Compute(prior *Tensor, matrix *align.Matrix, records []read.Record, sampleIndex []int, weights []float64) (posterior *Tensor, totalLogLikelihood float64) {
	post := prior.Clone()
	n := post.NumAlleles

	for r := range records {
		rec := &records[r]
		s := sampleIndex[r]
		w := 1.0
		if weights != nil {
			w = weights[r]
		}
		row := matrix.Row(r)
		for a := 0; a < n; a++ {
			la := logHalf + rec.LogP1 + row[a]
			for b := 0; b < n; b++ {
				lb := logHalf + rec.LogP2 + row[b]
				post.Add(a, b, s, w*mathx.LogSumExpPair(la, lb))
			}
		}
	}

	total := normalize(post)
	return post, total
}

// normalize subtracts, per sample, the logsumexp over every ordered
// (a, b) cell, and returns the sum of the subtracted values — the
// function's total log-likelihood contribution (spec.md §4.5).
func normalize(post *Tensor) float64 {
	n := post.NumAlleles
	var total float64
	vals := make([]float64, n*n)
	for s := 0; s < post.NumSamples; s++ {
		idx := 0
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				vals[idx] = post.At(a, b, s)
				idx++
			}
		}
		norm := mathx.LogSumExpSlice(vals)
		total += norm
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				post.Set(a, b, s, post.At(a, b, s)-norm)
			}
		}
	}
	return total
}

// MAPGenotype is the argmax ordered pair for one sample, per spec.md
// §4.5's "argmax over ordered (a, b) per sample".
type MAPGenotype struct {
	A, B         int
	LogPosterior float64
}

// MAP returns the MAP ordered genotype for sample s, tie-breaking by
// lower (a, b) in lexicographic order (spec.md §4.5): iterating a, b
// ascending and only replacing the incumbent on a strictly greater
// value achieves that tie-break for free.
func (t *Tensor) MAP(s int) MAPGenotype {
	best := MAPGenotype{A: 0, B: 0, LogPosterior: t.At(0, 0, s)}
	for a := 0; a < t.NumAlleles; a++ {
		for b := 0; b < t.NumAlleles; b++ {
			if v := t.At(a, b, s); v > best.LogPosterior {
				best = MAPGenotype{A: a, B: b, LogPosterior: v}
			}
		}
	}
	return best
}

// UnphasedPosterior returns logsumexp(P[a,b,s], P[b,a,s]), the
// unordered-pair posterior (spec.md §4.5). A homozygous pair has only
// one ordering, so a==b returns P[a,a,s] directly rather than double
// counting the same cell against itself.
func (t *Tensor) UnphasedPosterior(a, b, s int) float64 {
	if a == b {
		return t.At(a, a, s)
	}
	return mathx.LogSumExpPair(t.At(a, b, s), t.At(b, a, s))
}

// PhaseProbability returns exp(P[a,b,s] - unphased), the probability
// that phase orders as (a, b) rather than (b, a) (spec.md §4.5). A
// homozygous pair has no alternate phase, so it is always 1.0.
func (t *Tensor) PhaseProbability(a, b, s int) float64 {
	if a == b {
		return 1.0
	}
	return math.Exp(t.At(a, b, s) - t.UnphasedPosterior(a, b, s))
}
