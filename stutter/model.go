// Package stutter implements the PCR-stutter error model (spec.md
// §3 "Stutter model", §4.2 component C2): the probability that an
// observed repeat length differs from a true allele length by k base
// pairs, split into in-frame (multiples of the motif period) and
// out-of-frame geometric tails.
package stutter

import (
	"math"

	"github.com/exascience/strcall/mathx"
)

// Model holds the six scalar stutter parameters spec.md §3 names:
// an in-frame geometric step parameter and up/down direction
// probabilities, and the same triple for out-of-frame artifacts.
// Period and the support bounds travel with the model because every
// consumer (the aligner, the EM re-estimator) needs them alongside
// the six parameters, not because they are themselves one of the six.
type Model struct {
	InFrameP, InUp, InDown    float64
	OutFrameP, OutUp, OutDown float64

	Period       int32
	MaxInsertion int32
	MaxDeletion  int32 // stored as a positive magnitude
}

// New constructs a Model, grounded on the six-parameter framing
// spec.md itself uses for lobSTR/HipSTR-style genotypers.
func New(period, maxInsertion, maxDeletion int32, inFrameP, inUp, inDown, outFrameP, outUp, outDown float64) Model {
	return Model{
		InFrameP: inFrameP, InUp: inUp, InDown: inDown,
		OutFrameP: outFrameP, OutUp: outUp, OutDown: outDown,
		Period: period, MaxInsertion: maxInsertion, MaxDeletion: maxDeletion,
	}
}

// DefaultForPeriod returns a plausible starting model for a locus of
// the given motif period, used to seed EM before any read evidence
// has been incorporated. The numbers are typical order-of-magnitude
// stutter rates for capillary/NGS STR genotyping, not derived from
// any particular dataset.
func DefaultForPeriod(period int32) Model {
	return New(period, 8, 8,
		0.3, 0.08, 0.08, // in-frame: moderate step decay, ~8% contraction/expansion each
		0.6, 0.01, 0.01, // out-of-frame: rare, decays fast
	)
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// LogProbArtifact returns log P(observed repeat length deviates from
// trueAlleleBp by delta base pairs), per spec.md §4.2. Support is
// zero (mathx.NegInf) outside [-MaxDeletion, +MaxInsertion].
//
// trueAlleleBp is accepted for interface symmetry with future models
// that condition the stutter rate on allele length; this model's six
// parameters do not depend on it.
func (m Model) LogProbArtifact(trueAlleleBp, delta int32) float64 {
	if delta > m.MaxInsertion || delta < -m.MaxDeletion {
		return mathx.NegInf
	}
	if delta == 0 {
		p := 1 - m.InUp - m.InDown
		if p <= 0 {
			return mathx.NegInf
		}
		return math.Log(p)
	}
	if m.Period > 0 && delta%m.Period == 0 {
		return m.logInFrame(delta)
	}
	return m.logOutOfFrame(delta)
}

func (m Model) logInFrame(delta int32) float64 {
	stepIndex := absInt32(delta) / m.Period
	dir := m.InUp
	if delta < 0 {
		dir = m.InDown
	}
	if dir <= 0 {
		return mathx.NegInf
	}
	return math.Log(dir) + geometricLogProb(m.InFrameP, stepIndex-1)
}

// geometricLogProb returns log(p*(1-p)^k), the probability of k
// failures before the first success, for k >= 0.
func geometricLogProb(p float64, k int32) float64 {
	if k == 0 {
		return math.Log(p)
	}
	return math.Log(p) + float64(k)*math.Log1p(-p)
}

func (m Model) logOutOfFrame(delta int32) float64 {
	stepIndex := absInt32(delta)
	dir := m.OutUp
	if delta < 0 {
		dir = m.OutDown
	}
	if dir <= 0 {
		return mathx.NegInf
	}
	return math.Log(dir) + geometricLogProb(m.OutFrameP, stepIndex-1)
}

// Support returns every integer delta for which LogProbArtifact can
// be finite, ascending from -MaxDeletion to +MaxInsertion. The
// haplotype aligner's stutter sum (spec.md §4.4 step 2) iterates this
// slice rather than the full bp range whenever it only needs the
// values that can matter.
func (m Model) Support() []int32 {
	support := make([]int32, 0, int(m.MaxInsertion+m.MaxDeletion+1))
	for d := -m.MaxDeletion; d <= m.MaxInsertion; d++ {
		support = append(support, d)
	}
	return support
}

// Params returns the six scalar parameters as a flat array in the
// order in-frame (p, up, down), out-of-frame (p, up, down).
func (m Model) Params() [6]float64 {
	return [6]float64{m.InFrameP, m.InUp, m.InDown, m.OutFrameP, m.OutUp, m.OutDown}
}

// WithParams returns a copy of m with its six scalar parameters
// replaced (in Params' order), keeping Period/MaxInsertion/MaxDeletion
// unchanged.
func (m Model) WithParams(p [6]float64) Model {
	m.InFrameP, m.InUp, m.InDown = p[0], p[1], p[2]
	m.OutFrameP, m.OutUp, m.OutDown = p[3], p[4], p[5]
	return m
}
