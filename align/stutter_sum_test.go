package align

import (
	"testing"

	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/stutter"
)

func TestStretchRepeatExpansionAndContraction(t *testing.T) {
	seq := []byte("AAAA")
	if got := string(stretchRepeat(seq, 0, 4)); got != "AAAA" {
		t.Errorf("zero delta should return the sequence unchanged, got %q", got)
	}
	if got := string(stretchRepeat(seq, 4, 4)); got != "AAAAAAAA" {
		t.Errorf("stretchRepeat(+4, period 4) = %q, want AAAAAAAA", got)
	}
	if got := string(stretchRepeat(seq, -2, 4)); got != "AA" {
		t.Errorf("stretchRepeat(-2, period 4) = %q, want AA", got)
	}
}

func TestStretchRepeatMotifUnit(t *testing.T) {
	seq := []byte("ACGTACGT")
	got := string(stretchRepeat(seq, 4, 4))
	if got != "ACGTACGTACGT" {
		t.Errorf("stretchRepeat should tile the trailing motif unit, got %q", got)
	}
}

func simpleHaplotype() haplotype.Haplotype {
	left := haplotype.FlankBlock{Alternates: [][]byte{[]byte("GGGG")}}
	right := haplotype.FlankBlock{Alternates: [][]byte{[]byte("TTTT")}}
	repeat := haplotype.RepeatBlock{
		Alternates: [][]byte{[]byte("AAAAAAAA")},
		Stutter:    stutter.DefaultForPeriod(4),
	}
	return haplotype.New(left, repeat, right)
}

func TestStutterTermsSkipsZeroProbabilityOffsets(t *testing.T) {
	hap := simpleHaplotype()
	bases := "GGGGAAAAAAAATTTT"
	quals := highQuals(len(bases))
	terms := stutterTerms(bases, quals, hap, 0)
	if len(terms) == 0 {
		t.Fatal("expected at least the zero-delta term")
	}
	for _, term := range terms {
		if term.total <= mathx.NegInf {
			t.Errorf("stutterTerms should not include offsets with NegInf total, got delta=%d", term.delta)
		}
	}
}

func TestSumLogLikelihoodFiniteForSupportedRead(t *testing.T) {
	hap := simpleHaplotype()
	bases := "GGGGAAAAAAAATTTT"
	quals := highQuals(len(bases))
	got := sumLogLikelihood(bases, quals, hap, 0)
	if got == mathx.NegInf {
		t.Error("an exactly-matching read should have finite sum-log-likelihood")
	}
}

func TestBestDeltaZeroForExactMatch(t *testing.T) {
	hap := simpleHaplotype()
	bases := "GGGGAAAAAAAATTTT"
	quals := highQuals(len(bases))
	if got := bestDelta(bases, quals, hap, 0); got != 0 {
		t.Errorf("bestDelta for an exact-length match should be 0, got %d", got)
	}
}
