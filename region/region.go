// Package region holds the immutable locus descriptor the rest of
// strcall is built around (spec.md §3, "Region").
package region

import "fmt"

// Region is an immutable descriptor of the STR locus being genotyped:
// chromosome, inclusive reference start/stop, motif period, and an
// optional display name. A Region never changes once constructed; it
// is held by value by the orchestrator (locus.Locus) and passed to
// vcfout when a record is written.
type Region struct {
	Chrom  string
	Start  int32 // inclusive, 1-based
	Stop   int32 // inclusive, 1-based
	Period int32 // motif period p, 1..9
	Name   string
}

// Len returns the number of reference bases the region spans.
func (r Region) Len() int32 {
	return r.Stop - r.Start + 1
}

// String renders the region the way a locus would be named in a log
// message or VCF ID field, e.g. "chr1:1000-1020" or "chr1:1000-1020(D1S80)".
func (r Region) String() string {
	if r.Name == "" {
		return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.Stop)
	}
	return fmt.Sprintf("%s:%d-%d(%s)", r.Chrom, r.Start, r.Stop, r.Name)
}

// MaxRefFlankLen is the reference flanking margin expected on each
// side of a locus window (spec.md §6, "≥ MAX_REF_FLANK_LEN on each
// side; typical 30 bp"). No code checks flank lengths against it.
const MaxRefFlankLen = 30
