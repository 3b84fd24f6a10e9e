// Package vcfout renders a locus.Result as VCF text: one data line
// per locus, FORMAT fields GT/AD/PL/DP per sample.
//
// Grounded on elPrep's vcf package (vcf/vcf-types.go's field-type
// enumeration, vcf/vcf-files.go's line-writing shape) reimplemented
// locally rather than imported, since this core is a new module, not
// a fork of elPrep, and only needs a small fixed FORMAT schema rather
// than the general VCF type system elPrep's own parser supports. The
// pooled-[]byte append style follows internal/byte-buffer.go, the same
// buffer-reuse idiom elPrep's own sam/vcf writers use.
package vcfout

import (
	"strconv"

	"github.com/exascience/strcall/internal"
	"github.com/exascience/strcall/locus"
	"github.com/exascience/strcall/region"
)

// HeaderLines returns the minimal VCF v4.3 header this core's FORMAT
// schema needs, matching elPrep's vcf.FileFormatVersionLine constant
// family.
func HeaderLines() []string {
	return []string{
		"##fileformat=VCFv4.3",
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
		`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Copies of each allele in the called genotype">`,
		`##FORMAT=<ID=PL,Number=1,Type=Integer,Description="-10 times the log10 likelihood difference between the called genotype and the next best">`,
		`##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">`,
	}
}

// padAlleles left-pads every alternate allele so it shares the
// reference's anchoring base whenever any allele starts with a
// non-reference (indel) base, the flank-padding rule spec.md §6
// requires for per-locus output.
func padAlleles(ref []byte, alts [][]byte) ([]byte, [][]byte) {
	needsPad := false
	for _, a := range alts {
		if len(a) == 0 || len(ref) == 0 || a[0] != ref[0] {
			needsPad = true
			break
		}
	}
	if !needsPad {
		return ref, alts
	}
	anchor := byte('N')
	if len(ref) > 0 {
		anchor = ref[0]
	}
	paddedRef := append([]byte{anchor}, ref...)
	padded := make([][]byte, len(alts))
	for i, a := range alts {
		padded[i] = append([]byte{anchor}, a...)
	}
	return paddedRef, padded
}

// WriteRecord formats one locus.Result as a VCF data line, one column
// per sample in sampleOrder, using a pooled byte buffer
// (internal.ReserveByteBuffer / ReleaseByteBuffer) and returns the
// finished line as a string. The size hint covers the fixed CHROM..
// FORMAT columns plus a per-sample GT:AD:PL:DP estimate, so a
// many-sample locus's line grows the pooled slice once rather than
// through append's repeated doubling.
func WriteRecord(reg region.Region, res locus.Result, sampleOrder []string) string {
	sizeHint := 64 + len(res.Locus.Alternates)*8 + len(sampleOrder)*24
	buf := internal.ReserveByteBuffer(sizeHint)
	defer internal.ReleaseByteBuffer(buf)

	ref, alts := padAlleles(res.Locus.Reference, res.Locus.Alternates)

	buf = append(buf, reg.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(reg.Start), 10)
	buf = append(buf, '\t')
	buf = append(buf, reg.String()...)
	buf = append(buf, '\t')
	buf = append(buf, ref...)
	buf = append(buf, '\t')
	if len(alts) == 0 {
		buf = append(buf, '.')
	} else {
		for i, a := range alts {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, a...)
		}
	}
	buf = append(buf, "\t.\t.\t.\tGT:AD:PL:DP"...)

	bySample := make(map[string]locus.SampleResult, len(res.Samples))
	for _, sr := range res.Samples {
		bySample[sr.Sample] = sr
	}

	for _, name := range sampleOrder {
		sr, ok := bySample[name]
		if !ok || sr.Missing {
			buf = append(buf, "\t./.:.:.:."...)
			continue
		}
		buf = appendSampleColumn(buf, sr, res.Locus.AlleleCounts)
	}

	return string(buf)
}

func appendSampleColumn(buf []byte, sr locus.SampleResult, alleleCounts []int) []byte {
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(sr.MapA), 10)
	buf = append(buf, '/')
	buf = strconv.AppendInt(buf, int64(sr.MapB), 10)
	buf = append(buf, ':')
	for i := range alleleCounts {
		if i > 0 {
			buf = append(buf, ',')
		}
		depth := 0
		if i == sr.MapA {
			depth++
		}
		if i == sr.MapB {
			depth++
		}
		buf = strconv.AppendInt(buf, int64(depth), 10)
	}
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(-10*sr.GLDiff), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(sr.TotalReads), 10)
	return buf
}
