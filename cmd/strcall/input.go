package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/exascience/strcall/read"
	"github.com/exascience/strcall/region"
	"github.com/exascience/strcall/stutter"
)

// inputRegion mirrors region.Region's fields for JSON decoding.
type inputRegion struct {
	Chrom  string `json:"chrom"`
	Start  int32  `json:"start"`
	Stop   int32  `json:"stop"`
	Period int32  `json:"period"`
	Name   string `json:"name"`
}

// inputStutter mirrors stutter.Model's six parameters plus its
// support bounds. Each support bound left at zero falls back to
// stutter.DefaultForPeriod's value for the record's period; each
// (p, up, down) triple is taken from the input only when its p field
// is non-zero, otherwise the whole triple falls back to the defaults.
type inputStutter struct {
	InFrameP     float64 `json:"in_frame_p,omitempty"`
	InUp         float64 `json:"in_up,omitempty"`
	InDown       float64 `json:"in_down,omitempty"`
	OutFrameP    float64 `json:"out_frame_p,omitempty"`
	OutUp        float64 `json:"out_up,omitempty"`
	OutDown      float64 `json:"out_down,omitempty"`
	MaxInsertion int32   `json:"max_insertion,omitempty"`
	MaxDeletion  int32   `json:"max_deletion,omitempty"`
}

// inputRecord mirrors read.Record, with Quals carried as a plain int
// array rather than []byte so the JSON on disk stays human-readable
// instead of being base64-encoded by encoding/json's default []byte
// handling.
type inputRecord struct {
	Bases    string  `json:"bases"`
	Quals    []int   `json:"quals"`
	Cigar    string  `json:"cigar"`
	MapStart int32   `json:"map_start"`
	Sample   string  `json:"sample"`
	LogP1    *float64 `json:"log_p1,omitempty"`
	LogP2    *float64 `json:"log_p2,omitempty"`
	Usable   bool    `json:"usable"`
}

// locusInput is the on-disk JSON shape one `strcall genotype`
// invocation consumes: a locus descriptor, its starting haplotype,
// the realigned reads, and the sample roster.
type locusInput struct {
	Region           inputRegion  `json:"region"`
	LeftFlank        string       `json:"left_flank"`
	RightFlank       string       `json:"right_flank"`
	RepeatAlternates []string     `json:"repeat_alternates"`
	Stutter          inputStutter `json:"stutter"`
	Records          []inputRecord `json:"records"`
	SampleNames      []string     `json:"sample_names"`
	CallSample       []bool       `json:"call_sample"`
}

func loadInput(path string) (*locusInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in locusInput
	if err := json.NewDecoder(f).Decode(&in); err != nil {
		return nil, fmt.Errorf("strcall: decoding %s: %w", path, err)
	}
	return &in, nil
}

func (in *locusInput) toRegion() region.Region {
	r := in.Region
	return region.Region{Chrom: r.Chrom, Start: r.Start, Stop: r.Stop, Period: r.Period, Name: r.Name}
}

func (in *locusInput) toRepeatAlternates() [][]byte {
	alts := make([][]byte, len(in.RepeatAlternates))
	for i, a := range in.RepeatAlternates {
		alts[i] = []byte(a)
	}
	return alts
}

func (in *locusInput) toStutterModel() stutter.Model {
	period := in.Region.Period
	base := stutter.DefaultForPeriod(period)
	s := in.Stutter
	maxIns, maxDel := base.MaxInsertion, base.MaxDeletion
	if s.MaxInsertion != 0 {
		maxIns = s.MaxInsertion
	}
	if s.MaxDeletion != 0 {
		maxDel = s.MaxDeletion
	}
	inFrameP, inUp, inDown := base.InFrameP, base.InUp, base.InDown
	outFrameP, outUp, outDown := base.OutFrameP, base.OutUp, base.OutDown
	if s.InFrameP != 0 {
		inFrameP, inUp, inDown = s.InFrameP, s.InUp, s.InDown
	}
	if s.OutFrameP != 0 {
		outFrameP, outUp, outDown = s.OutFrameP, s.OutUp, s.OutDown
	}
	return stutter.New(period, maxIns, maxDel, inFrameP, inUp, inDown, outFrameP, outUp, outDown)
}

// toRecords builds each read.Record and fills in BpDiff by parsing the
// record's own CIGAR against the locus's repeat-block window, the
// same extraction spec.md's Read record description assumes has
// already happened by the time a Record reaches the core.
func (in *locusInput) toRecords() []read.Record {
	repeatStart, repeatStop := in.Region.Start, in.Region.Stop
	records := make([]read.Record, len(in.Records))
	for i, r := range in.Records {
		quals := make([]byte, len(r.Quals))
		for j, q := range r.Quals {
			quals[j] = byte(q)
		}
		logP1, logP2 := read.UniformPhasePriors()
		if r.LogP1 != nil && r.LogP2 != nil {
			logP1, logP2 = *r.LogP1, *r.LogP2
		}
		rec := read.NewRecord(r.Bases, quals, r.Cigar, r.MapStart, r.Sample, logP1, logP2, r.Usable)
		if ops, err := read.ParseCigar(r.Cigar); err == nil {
			rec.BpDiff = read.ParseBpDiff(ops, r.MapStart, repeatStart, repeatStop)
		}
		records[i] = rec
	}
	return records
}

func (in *locusInput) toCallSample() []bool {
	if len(in.CallSample) == len(in.SampleNames) {
		return in.CallSample
	}
	all := make([]bool, len(in.SampleNames))
	for i := range all {
		all[i] = true
	}
	return all
}
