// Package emstutter implements the EM stutter re-estimator (spec.md
// §4.7, component C7): given per-read integer repeat-length
// differences and per-read phase priors, refits the stutter model's
// six scalar parameters by expectation-maximization.
//
// Grounded on the geometric likelihood the stutter package itself
// uses, generalized here into an EM loop the way
// elPrep's filters/bqsr.go refits its own quality-model tables from
// observed mismatch/indel counts (a weighted-frequency M-step over a
// fixed parametric family).
package emstutter

import (
	"math"

	"github.com/exascience/strcall/locuserr"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/read"
	"github.com/exascience/strcall/stutter"
)

// Observation is one per-read data point the EM loop consumes: the
// observed integer repeat-length difference (or read.Missing),
// together with the per-read phase priors needed to soft-assign the
// observation to allele one or allele two of its sample's current MAP
// genotype.
type Observation struct {
	BpDiff      int32
	LogP1       float64
	LogP2       float64
	AlleleOneBp int32
	AlleleTwoBp int32
}

// Result is the outcome of Run: a refit Model and the number of
// iterations taken to converge.
type Result struct {
	Model      stutter.Model
	Iterations int
	FinalLL    float64
}

// Run fits the six stutter parameters by EM (spec.md §4.7): starting
// from init, it iterates up to maxIter, stopping when either the
// absolute or fractional log-likelihood improvement drops below the
// configured tolerance. haploid only affects how AlleleTwoBp should be
// interpreted by the caller building Observation (a haploid read's
// two alleles are identical), not the M-step itself.
func Run(init stutter.Model, obs []Observation, maxIter int, absTol, fracTol float64) (Result, error) {
	model := init
	prevLL := math.Inf(-1)

	for iter := 0; iter < maxIter; iter++ {
		ll, next := emStep(model, obs)
		if iter > 0 {
			absDelta := ll - prevLL
			if absDelta < 0 {
				return Result{}, locuserr.New(locuserr.RetrainFail, "log-likelihood decreased during EM")
			}
			fracDelta := absDelta / math.Abs(prevLL)
			if absDelta < absTol || fracDelta < fracTol {
				return Result{Model: next, Iterations: iter + 1, FinalLL: ll}, nil
			}
		}
		model = next
		prevLL = ll
	}
	return Result{}, locuserr.New(locuserr.RetrainFail, "EM did not converge within max_em_iter")
}

// emStep runs one E-step + M-step pass, returning the current
// model's total log-likelihood over obs and a refit model.
func emStep(model stutter.Model, obs []Observation) (float64, stutter.Model) {
	var totalLL float64

	// Soft counts for the M-step: in-frame up/down/zero mass, and
	// out-of-frame up/down/zero mass, weighted by each observation's
	// posterior responsibility, plus the weighted geometric step-index
	// sums (inKSum/outKSum) the geometric MLE needs alongside the mass.
	var inUpMass, inDownMass, inZeroMass float64
	var outUpMass, outDownMass, outZeroMass float64
	var inKSum, outKSum float64

	for _, o := range obs {
		if o.BpDiff == read.Missing {
			continue
		}
		deltaA := o.BpDiff - o.AlleleOneBp
		deltaB := o.BpDiff - o.AlleleTwoBp

		logWA := o.LogP1 + model.LogProbArtifact(o.AlleleOneBp, deltaA)
		logWB := o.LogP2 + model.LogProbArtifact(o.AlleleTwoBp, deltaB)
		norm := mathx.LogSumExpPair(logWA, logWB)
		totalLL += norm
		wA := math.Exp(logWA - norm)
		wB := math.Exp(logWB - norm)

		accumulate(model, deltaA, wA, &inUpMass, &inDownMass, &inZeroMass, &outUpMass, &outDownMass, &outZeroMass, &inKSum, &outKSum)
		accumulate(model, deltaB, wB, &inUpMass, &inDownMass, &inZeroMass, &outUpMass, &outDownMass, &outZeroMass, &inKSum, &outKSum)
	}

	next := model
	if total := inUpMass + inDownMass + inZeroMass; total > 0 {
		next.InUp = inUpMass / total
		next.InDown = inDownMass / total
		if mass := inUpMass + inDownMass; mass > 0 {
			// Geometric MLE over step index k = |delta|/period - 1:
			// mean(k) = (1-p)/p, so p = mass / (mass + sum(k)).
			next.InFrameP = mass / (mass + inKSum)
		}
	}
	if total := outUpMass + outDownMass + outZeroMass; total > 0 {
		next.OutUp = outUpMass / total
		next.OutDown = outDownMass / total
		if mass := outUpMass + outDownMass; mass > 0 {
			next.OutFrameP = mass / (mass + outKSum)
		}
	}
	return totalLL, next
}

// accumulate folds one allele's observed delta into the running
// soft-count totals, weighted by its E-step responsibility. inKSum and
// outKSum accumulate weight*(stepIndex-1), the geometric step index
// LogProbArtifact itself evaluates the geometric PMF at (spec.md §4.2,
// stutter/model.go's logInFrame/logOutOfFrame), so the M-step's
// geometric MLE has the step-size information it needs rather than
// just a same-as-mass observation count.
func accumulate(model stutter.Model, delta int32, weight float64, inUpMass, inDownMass, inZeroMass, outUpMass, outDownMass, outZeroMass, inKSum, outKSum *float64) {
	if weight <= 0 {
		return
	}
	inFrame := model.Period > 0 && delta%model.Period == 0
	switch {
	case delta == 0:
		*inZeroMass += weight
	case inFrame && delta > 0:
		*inUpMass += weight
		*inKSum += weight * float64(absInt32(delta)/model.Period-1)
	case inFrame && delta < 0:
		*inDownMass += weight
		*inKSum += weight * float64(absInt32(delta)/model.Period-1)
	case !inFrame && delta > 0:
		*outUpMass += weight
		*outKSum += weight * float64(absInt32(delta)-1)
	case !inFrame && delta < 0:
		*outDownMass += weight
		*outKSum += weight * float64(absInt32(delta)-1)
	}
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
