package refine

import (
	"testing"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/strcall/align"
	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/posterior"
	"github.com/exascience/strcall/stutter"
	"github.com/exascience/strcall/trace"
)

func twoAlleleHaplotype() haplotype.Haplotype {
	left := haplotype.FlankBlock{Alternates: [][]byte{[]byte("GGGG")}}
	right := haplotype.FlankBlock{Alternates: [][]byte{[]byte("TTTT")}}
	repeat := haplotype.RepeatBlock{
		Alternates: [][]byte{[]byte("AAAA"), []byte("AAAAAA"), []byte("AAAAAAAA")},
		Stutter:    stutter.DefaultForPeriod(4),
	}
	return haplotype.New(left, repeat, right)
}

func TestCheckDeletionBound(t *testing.T) {
	if err := CheckDeletionBound(nil, 4); err != nil {
		t.Errorf("no candidates should never trip the deletion bound, got %v", err)
	}
	short := [][]byte{[]byte("AA")}
	if err := CheckDeletionBound(short, 4); err == nil {
		t.Error("a candidate shorter than max_deletion should trip the deletion bound")
	}
	ok := [][]byte{[]byte("AAAAAA")}
	if err := CheckDeletionBound(ok, 4); err != nil {
		t.Errorf("a candidate at least as long as max_deletion should pass, got %v", err)
	}
}

func TestCalledAllelesOnlyMarksEligibleCallSamples(t *testing.T) {
	post := posterior.NewDiploidPrior(3, 2)
	post.Set(0, 0, 0, 0) // sample 0 strongly favors (0,0)
	post.Set(1, 2, 1, 0) // sample 1 strongly favors (1,2), but isn't callable

	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if a != 0 || b != 0 {
				post.Set(a, b, 0, mathx.NegInf/2)
			}
			if a != 1 || b != 2 {
				post.Set(a, b, 1, mathx.NegInf/2)
			}
		}
	}

	called := CalledAlleles(post,
		func(s int) bool { return true },
		func(s int) bool { return s == 0 },
	)
	if !called.Test(0) {
		t.Error("allele 0 should be marked called from sample 0's MAP")
	}
	if called.Test(1) || called.Test(2) {
		t.Error("sample 1's alleles should not be marked called since call_sample is false")
	}
}

func TestPruneIsNoOpWhenAllAllelesCalled(t *testing.T) {
	hap := twoAlleleHaplotype()
	matrix := align.NewMatrix(1, 3)
	cache := trace.New()
	called := bitset.New(3)
	called.Set(0).Set(1).Set(2)

	result := Prune(hap, matrix, cache, called)
	if result.Haplotype.Repeat.NumAlternates() != 3 {
		t.Errorf("pruning a fully-called set should not drop alternates, got %d", result.Haplotype.Repeat.NumAlternates())
	}
	if result.Matrix != matrix {
		t.Error("Prune should return the same matrix pointer when nothing is pruned")
	}
}

func TestPruneDropsUncalledAllelesButKeepsReference(t *testing.T) {
	hap := twoAlleleHaplotype()
	matrix := align.NewMatrix(1, 3)
	matrix.Set(0, 0, 1)
	matrix.Set(0, 1, 2)
	matrix.Set(0, 2, 3)
	cache := trace.New()
	cache.Put(0, 2, trace.Trace{StutterSize: 4})

	called := bitset.New(3)
	called.Set(2) // only allele 2 called; allele 0 stays because it's the reference

	result := Prune(hap, matrix, cache, called)
	if result.Haplotype.Repeat.NumAlternates() != 2 {
		t.Fatalf("expected 2 surviving alternates (ref + allele 2), got %d", result.Haplotype.Repeat.NumAlternates())
	}
	if string(result.Haplotype.Repeat.Alternates[0]) != "AAAA" {
		t.Error("Prune must always keep the reference allele")
	}
	if string(result.Haplotype.Repeat.Alternates[1]) != "AAAAAAAA" {
		t.Errorf("surviving non-reference allele = %q, want AAAAAAAA", result.Haplotype.Repeat.Alternates[1])
	}
	if cache.Len() != 1 {
		t.Errorf("reindexed cache should retain the trace for the surviving allele, Len() = %d", cache.Len())
	}
	if _, ok := cache.Get(0, 1); !ok {
		t.Error("allele 2's trace should now be indexed under its new position 1")
	}
}

func TestPruneIdempotentOnUnchangedCalledSet(t *testing.T) {
	hap := twoAlleleHaplotype()
	matrix := align.NewMatrix(1, 3)
	cache := trace.New()
	called := bitset.New(3)
	called.Set(2)

	first := Prune(hap, matrix, cache, called)

	// The surviving non-reference allele is now at index 1; a second
	// Prune call expressing the same "still called" decision in terms
	// of the new indices should leave the allele set unchanged.
	calledAgain := bitset.New(2)
	calledAgain.Set(1)
	second := Prune(first.Haplotype, first.Matrix, cache, calledAgain)
	if second.Haplotype.Repeat.NumAlternates() != first.Haplotype.Repeat.NumAlternates() {
		t.Error("a second Prune call with an unchanged called set should be a no-op")
	}
}

func TestMergeAddsCandidatesSortedByLength(t *testing.T) {
	hap := twoAlleleHaplotype() // AAAA, AAAAAA, AAAAAAAA
	matrix := align.NewMatrix(2, 3)
	cache := trace.New()
	cache.Put(0, 1, trace.Trace{StutterSize: 2})

	candidates := [][]byte{[]byte("AAAAAAAAAAAA"), []byte("AA")}
	candidateMatrix := align.NewMatrix(2, 2)
	candidateMatrix.Set(0, 0, 10)
	candidateMatrix.Set(0, 1, 20)
	candidateMatrix.Set(1, 0, 30)
	candidateMatrix.Set(1, 1, 40)

	result := Merge(hap, matrix, cache, candidates, candidateMatrix)
	alts := result.Haplotype.Repeat.Alternates
	if len(alts) != 5 {
		t.Fatalf("expected 5 alternates after merging 2 candidates into 3, got %d", len(alts))
	}
	if string(alts[0]) != "AAAA" {
		t.Error("Merge must keep the reference allele first")
	}
	for i := 1; i < len(alts); i++ {
		if len(alts[i-1]) > len(alts[i]) {
			t.Errorf("alternates should be sorted by ascending length, got %v", alts)
			break
		}
	}

	newIdx := result.Haplotype.Repeat.IndexOf([]byte("AA"))
	if result.Matrix.At(0, newIdx) != 20 {
		t.Errorf("candidate likelihood was not copied into its new column: got %v, want 20", result.Matrix.At(0, newIdx))
	}

	oldIdx1NewPos := result.Haplotype.Repeat.IndexOf([]byte("AAAAAA"))
	if _, ok := cache.Get(0, oldIdx1NewPos); !ok {
		t.Error("Merge should reindex the trace cache to the surviving allele's new position")
	}
}
