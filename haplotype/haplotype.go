// Package haplotype implements the three-block haplotype model
// (spec.md §3 "Haplotype", §4.1 component C1, §9 "Haplotype as
// tagged variant"): an ordered [left flank, repeat block, right
// flank] triple where only the repeat block carries multiple
// alternates and a stutter-info object.
//
// Grounded on the haplotype struct in elPrep's filters/pairhmm.go and
// filters/assigngls.go (isRef/bases/cigar fields for one candidate
// sequence), generalized here from "one haplotype object" to "three
// fixed blocks, only the middle one varying."
package haplotype

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/exascience/strcall/stutter"
)

// Missing is returned by IndexOf when a sequence is not present among
// the repeat block's alternates.
const Missing = -1

// FlankBlock is a fixed-content block: in this core it always carries
// exactly one alternate (the reference), but the type keeps the same
// shape as RepeatBlock so the three-block triple is homogeneous
// enough to traverse without per-block type switches, while still
// being a distinct type from RepeatBlock so only the repeat block can
// expose mutation of its alternate list (spec.md §9's tagged-variant
// note: "only the repeat block carries a stutter-info field, and only
// it supports mutation of its alternate list").
type FlankBlock struct {
	Start, Stop int32 // base-inclusive genomic coordinates
	Alternates  [][]byte
}

// NumAlternates returns the number of alternate sequences this block
// carries (always ≥1).
func (b FlankBlock) NumAlternates() int { return len(b.Alternates) }

// RepeatBlock is the middle block: it carries the stutter-info object
// and an ordered, mutable set of alternate repeat-sequence alleles,
// where alternate 0 is always the reference (spec.md §3).
type RepeatBlock struct {
	Start, Stop int32
	Alternates  [][]byte
	Stutter     stutter.Model
}

// NumAlternates returns the current allele count, i.e. num_alleles
// for the haplotype this block belongs to (spec.md §3: "in this core
// only the repeat block has >1 alternate, so num_alleles =
// repeat_block.num_alternates").
func (b RepeatBlock) NumAlternates() int { return len(b.Alternates) }

// IndexOf returns the alternate index of seq, or Missing if seq is
// not one of the block's current alternates.
func (b RepeatBlock) IndexOf(seq []byte) int {
	for i, alt := range b.Alternates {
		if string(alt) == string(seq) {
			return i
		}
	}
	return Missing
}

// Contains reports whether seq is already one of the block's
// alternates.
func (b RepeatBlock) Contains(seq []byte) bool {
	return b.IndexOf(seq) != Missing
}

// AddAlternate returns a new RepeatBlock with seq appended as a new
// alternate. It does not check for duplicates; callers (the
// stutter-allele discovery loop) check Contains first, per spec.md
// §4.6 step 2 ("the sequence is not already an alternate").
func (b RepeatBlock) AddAlternate(seq []byte) RepeatBlock {
	next := make([][]byte, len(b.Alternates)+1)
	copy(next, b.Alternates)
	next[len(b.Alternates)] = append([]byte(nil), seq...)
	b.Alternates = next
	return b
}

// RemoveAlleles returns a new RepeatBlock keeping alternate 0 (the
// reference, always retained) and every alternate whose index is not
// in indices, preserving the relative order of survivors (spec.md
// §4.1: "remove_alleles(indices) returns a new repeat block keeping
// alternate 0 and those not in indices, preserving the relative order
// of survivors").
func (b RepeatBlock) RemoveAlleles(indices []int) RepeatBlock {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	survivors := make([][]byte, 0, len(b.Alternates))
	for i, alt := range b.Alternates {
		if i == 0 || !drop[i] {
			survivors = append(survivors, alt)
		}
	}
	b.Alternates = survivors
	return b
}

// SortByLength returns a new RepeatBlock whose alternates are sorted
// so alternate 0 (the reference) stays first and the rest are ordered
// by ascending length, per spec.md §4.6 step 3's merge rule. Ties in
// length preserve the relative input order (a stable sort), which
// matters for determinism across repeated refinement passes.
func (b RepeatBlock) SortByLength() RepeatBlock {
	if len(b.Alternates) <= 1 {
		return b
	}
	ref := b.Alternates[0]
	rest := append([][]byte(nil), b.Alternates[1:]...)
	slices.SortStableFunc(rest, func(a, c []byte) bool {
		return len(a) < len(c)
	})
	next := make([][]byte, 0, len(b.Alternates))
	next = append(next, ref)
	next = append(next, rest...)
	b.Alternates = next
	return b
}

// ShortestLen returns the length in bp of the shortest alternate, used
// by the C9 guard and the discovery loop's abort check (spec.md §4.6
// step 3, §4.9: "the shortest repeat-block alternate is shorter than
// |max_deletion|").
func (b RepeatBlock) ShortestLen() int {
	if len(b.Alternates) == 0 {
		return 0
	}
	min := len(b.Alternates[0])
	for _, alt := range b.Alternates[1:] {
		if l := len(alt); l < min {
			min = l
		}
	}
	return min
}

// Haplotype is the ordered [left flank, repeat block, right flank]
// triple. It is an immutable value once constructed: any change to
// the repeat block's alternate list produces a new RepeatBlock, which
// must be used to construct a fresh Haplotype via New — spec.md §4.1's
// rebuild rule ("whenever the repeat block's alternate list changes,
// the haplotype must be rebuilt from scratch; consumers receiving
// stale block pointers must re-fetch").
type Haplotype struct {
	Left   FlankBlock
	Repeat RepeatBlock
	Right  FlankBlock
}

// New constructs a Haplotype and validates the construction-contract
// invariants spec.md §3 requires: the repeat block must carry at
// least one alternate, and none may be empty. These are
// assertion-class violations (spec.md §7 kind 5) and panic rather
// than returning an error, since they indicate a programming mistake
// in whatever constructed the blocks.
//
// The separate invariant that every alternate be no shorter than
// |max_deletion| is deliberately NOT checked here: spec.md §4.9 and
// §7 classify that condition as a LocusGuard (a recoverable,
// graceful-abort locus condition: "the shortest repeat-block
// alternate is shorter than |max_deletion|"), not a programming-error
// assertion, so the orchestrator checks it itself before ever calling
// the aligner.
func New(left FlankBlock, repeat RepeatBlock, right FlankBlock) Haplotype {
	if len(repeat.Alternates) == 0 {
		panic("haplotype: repeat block has no alternates")
	}
	for i, alt := range repeat.Alternates {
		if len(alt) == 0 {
			panic(fmt.Sprintf("haplotype: repeat block alternate %d is empty", i))
		}
	}
	return Haplotype{Left: left, Repeat: repeat, Right: right}
}

// NumAlleles is the number of candidate repeat-block alternates,
// equal to NumCombinations in this core since only the repeat block
// ever carries more than one alternate (spec.md §3).
func (h Haplotype) NumAlleles() int { return h.Repeat.NumAlternates() }

// NumCombinations returns the product of per-block alternate counts
// (spec.md §4.1).
func (h Haplotype) NumCombinations() int {
	return h.Left.NumAlternates() * h.Repeat.NumAlternates() * h.Right.NumAlternates()
}

// Bases materializes the full concatenated sequence for candidate
// allele k: left flank (alternate 0) + repeat block alternate k +
// right flank (alternate 0).
func (h Haplotype) Bases(k int) []byte {
	left := h.Left.Alternates[0]
	repeat := h.Repeat.Alternates[k]
	right := h.Right.Alternates[0]
	out := make([]byte, 0, len(left)+len(repeat)+len(right))
	out = append(out, left...)
	out = append(out, repeat...)
	out = append(out, right...)
	return out
}

// RepeatStart and RepeatStop expose the repeat block's genomic
// coordinates, used by the C9 spanning-read guard to test overlap
// against the ±5bp boundary window.
func (h Haplotype) RepeatStart() int32 { return h.Repeat.Start }
func (h Haplotype) RepeatStop() int32  { return h.Repeat.Stop }
