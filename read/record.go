// Package read holds the per-read record the core consumes from its
// external collaborators (spec.md §3, "Read record") plus the CIGAR
// parsing and quality-averaging helpers those records need.
package read

import (
	"fmt"
	"strconv"
)

// Missing is the bp_diff sentinel spec.md §3 calls for: "an integer
// bp_diff (net repeat-length difference extracted from the CIGAR
// within the repeat window, or a sentinel MISSING)".
const Missing = int32(-1 << 30)

// CigarOp is one parsed CIGAR operation, grounded on elPrep's
// sam.CigarOperation (sam/sam-types.go), scaled down to the handful
// of operations a realigned read within a small locus window uses.
type CigarOp struct {
	Length    int32
	Operation byte // one of M, I, D, S, =, X
}

// ParseCigar parses a CIGAR string such as "76M2D20M" into a slice of
// operations. It follows the same scan shape as elPrep's
// sam.ScanCigarString, simplified to the operations a single-locus
// realigned read can carry.
func ParseCigar(cigar string) ([]CigarOp, error) {
	if cigar == "" || cigar == "*" {
		return nil, nil
	}
	var ops []CigarOp
	var length int32
	sawDigit := false
	for i := 0; i < len(cigar); i++ {
		c := cigar[i]
		switch {
		case c >= '0' && c <= '9':
			length = length*10 + int32(c-'0')
			sawDigit = true
		default:
			if !sawDigit {
				return nil, fmt.Errorf("read: invalid cigar %q: missing length before operation %q", cigar, c)
			}
			ops = append(ops, CigarOp{Length: length, Operation: c})
			length = 0
			sawDigit = false
		}
	}
	if sawDigit {
		return nil, fmt.Errorf("read: invalid cigar %q: trailing length with no operation", cigar)
	}
	return ops, nil
}

// ReferenceSpan returns the number of reference bases the CIGAR
// consumes (M, D, =, X, N), the same accounting elPrep's
// cigarConsumesReferenceBasesOrS map performs minus soft clips, which
// never consume reference bases.
func ReferenceSpan(ops []CigarOp) int32 {
	var span int32
	for _, op := range ops {
		switch op.Operation {
		case 'M', 'D', '=', 'X', 'N':
			span += op.Length
		}
	}
	return span
}

// Record is one realigned read against the locus reference, carrying
// everything the haplotype aligner, posterior engine, and refiner
// need (spec.md §3, "Read record").
type Record struct {
	Bases string
	Quals []byte // Phred scores, not ASCII-offset
	Cigar string

	MapStart int32 // 1-based leftmost reference position
	Sample   string

	// LogP1 and LogP2 are the per-read SNP-phasing log-priors: the
	// prior log-probability the read came from allele one vs allele
	// two given nearby heterozygous SNPs. Uniform log(0.5), log(0.5)
	// when no SNP information is available.
	LogP1, LogP2 float64

	// Usable gates whether this read may contribute to stutter-allele
	// discovery (spec.md §3): refine.Discover skips reads with it unset.
	Usable bool

	// BpDiff is the net repeat-length difference extracted from the
	// CIGAR within the repeat window, or Missing.
	BpDiff int32

	// PoolIndex and SeedPosition are filled in by the pooler (C3) and
	// aligner (C4) respectively; they start unset.
	PoolIndex    int
	SeedPosition int32
}

// NewRecord constructs a Record holding the CIGAR in string form only
// (callers needing the ops call ParseCigar themselves), with BpDiff set
// to Missing and SeedPosition to -1.
func NewRecord(bases string, quals []byte, cigar string, mapStart int32, sample string, logP1, logP2 float64, usable bool) Record {
	return Record{
		Bases:        bases,
		Quals:        quals,
		Cigar:        cigar,
		MapStart:     mapStart,
		Sample:       sample,
		LogP1:        logP1,
		LogP2:        logP2,
		Usable:       usable,
		BpDiff:       Missing,
		SeedPosition: -1,
	}
}

// UniformPhasePriors returns the log(0.5), log(0.5) pair used when a
// read carries no SNP-phasing information (spec.md §3).
func UniformPhasePriors() (logP1, logP2 float64) {
	const logHalf = -0.6931471805599453 // math.Log(0.5)
	return logHalf, logHalf
}

// AverageQualities computes the position-wise mean base-quality
// string over a set of reads sharing an identical sequence — the
// "averaged base-quality string computed by the quality collaborator"
// spec.md §4.3 mentions for the pool's representative alignment.
// All inputs must have identical length; callers (the pooler) enforce
// this invariant before calling.
func AverageQualities(quals [][]byte) []byte {
	if len(quals) == 0 {
		return nil
	}
	n := len(quals[0])
	result := make([]byte, n)
	for pos := 0; pos < n; pos++ {
		var sum int
		for _, q := range quals {
			sum += int(q[pos])
		}
		mean := sum / len(quals)
		if mean > 255 {
			mean = 255
		}
		result[pos] = byte(mean)
	}
	return result
}

// ParseBpDiff walks a CIGAR string restricted to the repeat-block
// reference window [repeatStart, repeatStop] (inclusive, 1-based) and
// returns the net inserted-minus-deleted base count within that
// window, or Missing if the read does not overlap the window at all.
func ParseBpDiff(ops []CigarOp, mapStart, repeatStart, repeatStop int32) int32 {
	refPos := mapStart
	var net int32
	var overlapped bool
	for _, op := range ops {
		switch op.Operation {
		case 'M', '=', 'X':
			if refPos <= repeatStop && refPos+op.Length-1 >= repeatStart {
				overlapped = true
			}
			refPos += op.Length
		case 'D':
			if refPos <= repeatStop && refPos+op.Length-1 >= repeatStart {
				overlapped = true
				net -= op.Length
			}
			refPos += op.Length
		case 'I':
			if refPos >= repeatStart && refPos <= repeatStop+1 {
				overlapped = true
				net += op.Length
			}
		case 'N':
			refPos += op.Length
		}
	}
	if !overlapped {
		return Missing
	}
	return net
}

// MustAtoi32 parses a decimal string into an int32, panicking on
// malformed input; used only for literal test fixtures, never on
// externally supplied data.
func MustAtoi32(s string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		panic(err)
	}
	return int32(v)
}
