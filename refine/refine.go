// Package refine implements the allele-set refiner (spec.md §4.6,
// component C6): the stutter-allele discovery loop that proposes new
// repeat-block alternates from tracebacks, and uncalled-allele
// pruning.
//
// Grounded on elPrep's filters/assigngls.go allele-map construction
// (building a candidate set from observed evidence, then filtering by
// minimum support), generalized here from VCF event alleles to
// repeat-block sequences discovered from stutter tracebacks.
package refine

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/strcall/align"
	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/locuserr"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/pool"
	"github.com/exascience/strcall/posterior"
	"github.com/exascience/strcall/read"
	"github.com/exascience/strcall/trace"
)

// DiscoveryInput bundles the state the discovery loop's single
// iteration (spec.md §4.6 steps 1-2) needs to read.
type DiscoveryInput struct {
	Haplotype   haplotype.Haplotype
	Matrix      *align.Matrix
	Cache       *trace.Cache
	Pool        *pool.Pool
	Records     []read.Record
	SampleIndex []int
	NumSamples  int
	Posterior   *posterior.Tensor

	// MinReads and MinFraction are the acceptance thresholds (spec.md
	// §4.6 step 2), taken from config.Params so the 2-reads/15%
	// defaults live in one place.
	MinReads    int
	MinFraction float64
}

// candidateCount tracks, for one sample, how many spanning
// tracebacks support a given novel repeat-block sequence.
type candidateCount struct {
	count int
}

// Discover runs spec.md §4.6 steps 1-2: retraces every read against
// its MAP-selected phase, groups the stutter-nonzero tracebacks by
// reconstructed repeat sequence per sample, and returns every
// sequence that clears the ≥2-reads and ≥15%-of-spanning-tracebacks
// bar in at least one sample and is not already an alternate.
func Discover(in DiscoveryInput) [][]byte {
	hap := in.Haplotype
	perSampleSpanning := make([]int, in.NumSamples)
	perSampleCandidates := make([]map[string]*candidateCount, in.NumSamples)
	for s := range perSampleCandidates {
		perSampleCandidates[s] = make(map[string]*candidateCount)
	}

	for r := range in.Records {
		rec := &in.Records[r]
		if rec.SeedPosition < 0 || !rec.Usable {
			continue
		}
		s := in.SampleIndex[r]
		mapGT := in.Posterior.MAP(s)

		row := in.Matrix.Row(r)
		scoreA := row[mapGT.A]
		scoreB := row[mapGT.B]
		allele := mapGT.A
		if scoreB > scoreA {
			allele = mapGT.B
		}

		bases := in.Pool.RepresentativeBases(rec.PoolIndex)
		quals := in.Pool.RepresentativeQuals(rec.PoolIndex)
		tr, ok := in.Cache.Get(rec.PoolIndex, allele)
		if !ok {
			tr = align.TraceAlignment(bases, quals, hap, allele)
			in.Cache.Put(rec.PoolIndex, allele, tr)
		}

		// Only tracebacks that fully span the repeat block count toward
		// the denominator or contribute a stutter-candidate observation;
		// a read that merely clips into the block can't reliably imply
		// its full repeat-sequence content.
		if !tr.Spans {
			continue
		}
		perSampleSpanning[s]++
		if tr.StutterSize == 0 {
			continue
		}
		key := string(tr.RepeatSeq)
		c, ok := perSampleCandidates[s][key]
		if !ok {
			c = &candidateCount{}
			perSampleCandidates[s][key] = c
		}
		c.count++
	}

	seen := make(map[string]bool)
	var candidates [][]byte
	for s, counts := range perSampleCandidates {
		total := perSampleSpanning[s]
		if total == 0 {
			continue
		}
		for seq, c := range counts {
			if seen[seq] {
				continue
			}
			if hap.Repeat.Contains([]byte(seq)) {
				continue
			}
			fraction := float64(c.count) / float64(total)
			if c.count >= in.MinReads && fraction >= in.MinFraction {
				seen[seq] = true
				candidates = append(candidates, []byte(seq))
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) < len(candidates[j]) })
	return candidates
}

// CheckDeletionBound aborts the locus (spec.md §4.6 step 3, §7 kind
// 3: RefinerStuck) when the shortest candidate is shorter than the
// stutter model's |max_deletion|.
func CheckDeletionBound(candidates [][]byte, maxDeletion int32) error {
	if len(candidates) == 0 {
		return nil
	}
	if int32(len(candidates[0])) < maxDeletion {
		return locuserr.New(locuserr.RefinerStuck, "shortest discovered candidate is below the deletion bound")
	}
	return nil
}

// MergeResult is the outcome of folding newly discovered candidates
// into the haplotype (spec.md §4.6 step 3).
type MergeResult struct {
	Haplotype haplotype.Haplotype
	Matrix    *align.Matrix
}

// Merge builds the union repeat block (current alternates + accepted
// candidates, sorted so the reference stays first and the rest sort
// by ascending length), reindexes A by copying old columns into their
// new positions and filling newly discovered columns from
// candidateMatrix, reindexes the trace cache, and rebuilds the
// haplotype (spec.md §4.6 step 3, §9's reindex rule).
//
// candidateMatrix must have been computed by aligning every read
// against a temporary haplotype whose repeat block contains only
// candidates, in the same order as candidates.
func Merge(hap haplotype.Haplotype, matrix *align.Matrix, cache *trace.Cache, candidates [][]byte, candidateMatrix *align.Matrix) MergeResult {
	oldRepeat := hap.Repeat
	newRepeat := oldRepeat
	for _, c := range candidates {
		if !newRepeat.Contains(c) {
			newRepeat = newRepeat.AddAlternate(c)
		}
	}
	newRepeat = newRepeat.SortByLength()

	oldToNew := make(map[int]int, oldRepeat.NumAlternates())
	for i, alt := range oldRepeat.Alternates {
		oldToNew[i] = newRepeat.IndexOf(alt)
	}

	next := matrix.Reindex(oldToNew, newRepeat.NumAlternates(), mathx.NegInf)
	for j, c := range candidates {
		newIdx := newRepeat.IndexOf(c)
		for r := 0; r < next.NumReads; r++ {
			next.Set(r, newIdx, candidateMatrix.At(r, j))
		}
	}

	cache.Reindex(func(oldAllele int) int {
		if oldAllele < 0 || oldAllele >= len(oldRepeat.Alternates) {
			return -1
		}
		return newRepeat.IndexOf(oldRepeat.Alternates[oldAllele])
	})

	newHap := haplotype.New(hap.Left, newRepeat, hap.Right)
	return MergeResult{Haplotype: newHap, Matrix: next}
}

// CalledAlleles computes which allele indices appear in the MAP pair
// of any eligible, call-flagged sample (spec.md §4.6 "uncalled-allele
// pruning"), as a bitset over allele indices — the same bits-per-index
// survivor-marking idiom elPrep's filters/ref-confidence.go uses for
// its per-read informativeBases bitset, applied here to allele
// indices instead of read offsets. eligible(s) should return true
// when requireOneRead is false or sample s has ≥1 aligned read;
// callSample(s) gates on the per-sample call_sample flag.
func CalledAlleles(post *posterior.Tensor, eligible func(s int) bool, callSample func(s int) bool) *bitset.BitSet {
	called := bitset.New(uint(post.NumAlleles))
	for s := 0; s < post.NumSamples; s++ {
		if !eligible(s) || !callSample(s) {
			continue
		}
		gt := post.MAP(s)
		called.Set(uint(gt.A))
		called.Set(uint(gt.B))
	}
	return called
}

// Prune removes every non-called allele except alternate 0 (always
// retained), compacts A's columns, and remaps the trace cache (spec.md
// §4.6 "uncalled-allele pruning"). A second call with an unchanged
// called set is a no-op, satisfying spec.md §8's idempotence property.
func Prune(hap haplotype.Haplotype, matrix *align.Matrix, cache *trace.Cache, called *bitset.BitSet) MergeResult {
	oldRepeat := hap.Repeat
	keep := make([]int, 0, oldRepeat.NumAlternates())
	for i := range oldRepeat.Alternates {
		if i == 0 || called.Test(uint(i)) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(oldRepeat.Alternates) {
		return MergeResult{Haplotype: hap, Matrix: matrix}
	}

	newAlternates := make([][]byte, len(keep))
	oldToNew := make(map[int]int, len(keep))
	for newIdx, oldIdx := range keep {
		newAlternates[newIdx] = oldRepeat.Alternates[oldIdx]
		oldToNew[oldIdx] = newIdx
	}
	newRepeat := oldRepeat
	newRepeat.Alternates = newAlternates

	next := matrix.Reindex(oldToNew, len(keep), mathx.NegInf)
	cache.Reindex(func(oldAllele int) int {
		newIdx, ok := oldToNew[oldAllele]
		if !ok {
			return -1
		}
		return newIdx
	})

	newHap := haplotype.New(hap.Left, newRepeat, hap.Right)
	return MergeResult{Haplotype: newHap, Matrix: next}
}
