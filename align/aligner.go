package align

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/pool"
	"github.com/exascience/strcall/read"
)

// Result is the outcome of ComputeMatrix: the alignment matrix A
// itself, plus the per-pool seed positions the aligner derived
// (spec.md §4.4 step 1), kept alongside A since the refiner and
// traceback both need to know which pools had no usable seed.
type Result struct {
	Matrix      *Matrix
	Seeds       []int32          // per pool, seed offset or -1
	Informative []*bitset.BitSet // per pool, which alleles got a finite likelihood (all of them for a seedless pool)
}

// ComputeMatrix fills in the log-alignment matrix A for every (read,
// allele) pair, working one pool representative at a time and
// broadcasting the result to constituent reads via pool_index[r]
// (spec.md §4.4 step 3). Grounded on elPrep's filters/pairhmm.go
// computeReadLikelihoods outer parallel.Range(0, numReads, ...) loop,
// here re-keyed to pools and parallelized over pools with
// github.com/exascience/pargo/parallel, the same library elPrep uses
// for every CPU-bound fan-out in the pipeline.
func ComputeMatrix(hap haplotype.Haplotype, pl *pool.Pool, records []read.Record) *Result {
	numPools := pl.NumPools()
	numAlleles := hap.NumAlleles()

	seeds := make([]int32, numPools)
	informative := make([]*bitset.BitSet, numPools)
	poolLL := make([][]float64, numPools)

	refBases := hap.Bases(0)

	parallel.Range(0, numPools, 0, func(low, high int) {
		for p := low; p < high; p++ {
			bases := pl.RepresentativeBases(p)
			quals := pl.RepresentativeQuals(p)
			seed := findSeed(bases, refBases)
			seeds[p] = seed

			bits := bitset.New(uint(numAlleles))
			row := make([]float64, numAlleles)
			if seed < 0 {
				// A seedless read carries no alignment information: treat it
				// as uniform across alleles (log-probability 0), not
				// impossible, matching HipSTR's calc_log_sample_posteriors
				// treatment of unseeded reads in log_aln_probs.
				for k := range row {
					row[k] = 0.0
					bits.Set(uint(k))
				}
			} else {
				for k := 0; k < numAlleles; k++ {
					ll := sumLogLikelihood(bases, quals, hap, k)
					row[k] = ll
					if ll > mathx.NegInf {
						bits.Set(uint(k))
					}
				}
			}
			poolLL[p] = row
			informative[p] = bits
		}
	})

	matrix := NewMatrix(len(records), numAlleles)
	parallel.Range(0, len(records), 0, func(low, high int) {
		for r := low; r < high; r++ {
			rec := &records[r]
			p := rec.PoolIndex
			rec.SeedPosition = seeds[p]
			copy(matrix.Row(r), poolLL[p])
		}
	})

	return &Result{Matrix: matrix, Seeds: seeds, Informative: informative}
}
