// Package bootstrap implements the multinomial bootstrap quality
// estimator (spec.md §4.8, component C8): repeatedly resamples each
// sample's reads with replacement, re-runs the posterior engine on the
// resampled weights, and reports the fraction of resamples whose MAP
// genotype matches the original call.
//
// Grounded on elPrep's internal.Rand wrapper (internal/misc.go, here
// re-exported from strcall/internal) and on
// github.com/exascience/pargo/parallel for the per-iteration fan-out,
// the same library elPrep uses for every CPU-bound loop in its
// pipeline.
package bootstrap

import (
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/strcall/align"
	"github.com/exascience/strcall/internal"
	"github.com/exascience/strcall/posterior"
	"github.com/exascience/strcall/read"
)

// Quality runs b multinomial-resampling iterations and returns, per
// sample, the fraction of iterations whose bootstrap MAP genotype
// matched the original MAP genotype as an unordered pair (spec.md
// §4.8). Reads with seed_position < 0 are excluded from resampling,
// per spec.md's literal wording.
func Quality(prior *posterior.Tensor, original *posterior.Tensor, matrix *align.Matrix, records []read.Record, sampleIndex []int, numSamples, b int, seed int64) []float64 {
	if b <= 0 {
		return make([]float64, numSamples)
	}

	alignedPerSample := make([][]int, numSamples)
	for r := range records {
		if records[r].SeedPosition < 0 {
			continue
		}
		s := sampleIndex[r]
		alignedPerSample[s] = append(alignedPerSample[s], r)
	}

	originalMAP := make([]posterior.MAPGenotype, numSamples)
	for s := 0; s < numSamples; s++ {
		originalMAP[s] = original.MAP(s)
	}

	// Each goroutine accumulates its own partial matches/counts slices
	// and they are combined at the end, the same reduce-not-share shape
	// elPrep's filters/bqsr.go uses for its parallel.RangeReduce tables
	// (BaseRecalibratorTables.merge), avoiding concurrent writes into
	// one shared slice from multiple range partitions.
	type partial struct {
		matches, counts []int
	}
	result := parallel.RangeReduce(0, b, 0, func(low, high int) interface{} {
		matches := make([]int, numSamples)
		counts := make([]int, numSamples)
		for iter := low; iter < high; iter++ {
			rng := internal.NewRand(seed + int64(iter))
			weights := make([]float64, len(records))
			for s := 0; s < numSamples; s++ {
				reads := alignedPerSample[s]
				n := len(reads)
				for draw := 0; draw < n; draw++ {
					pick := reads[rng.Intn(n)]
					weights[pick]++
				}
			}

			resampled, _ := posterior.Compute(prior, matrix, records, sampleIndex, weights)
			for s := 0; s < numSamples; s++ {
				if len(alignedPerSample[s]) == 0 {
					continue
				}
				gt := resampled.MAP(s)
				orig := originalMAP[s]
				matched := (gt.A == orig.A && gt.B == orig.B) || (gt.A == orig.B && gt.B == orig.A)
				counts[s]++
				if matched {
					matches[s]++
				}
			}
		}
		return partial{matches: matches, counts: counts}
	}, func(x, y interface{}) interface{} {
		p1, p2 := x.(partial), y.(partial)
		for s := 0; s < numSamples; s++ {
			p1.matches[s] += p2.matches[s]
			p1.counts[s] += p2.counts[s]
		}
		return p1
	}).(partial)

	matches, counts := result.matches, result.counts

	quality := make([]float64, numSamples)
	for s := 0; s < numSamples; s++ {
		if counts[s] == 0 {
			continue
		}
		quality[s] = float64(matches[s]) / float64(counts[s])
	}
	return quality
}
