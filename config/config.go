// Package config holds every tunable the core consumes, the way
// elPrep's HaplotypeCaller struct in filters/haplotypecaller.go
// centralizes its own tunables (many marked there with a
// "// todo: command line parameter" comment for values that are
// placeholders rather than spec-given constants).
package config

// Params bundles every parameter the genotype orchestrator (locus.Locus)
// and its collaborators need. Construct with Default and override
// individual fields; there is no builder API because the set of
// tunables is small and flat.
type Params struct {
	// MaxInsertion and MaxDeletion bound the stutter model's support,
	// expressed in base pairs (spec.md §3, "Stutter model").
	MaxInsertion int32
	MaxDeletion  int32

	// MaxEMIter, AbsLLConverge, and FracLLConverge control the EM
	// stutter re-estimator's convergence test (spec.md §4.7).
	MaxEMIter      int
	AbsLLConverge  float64
	FracLLConverge float64

	// RequireOneRead gates emission of any sample with zero aligned
	// reads (spec.md §3, "Per-sample flags").
	RequireOneRead bool

	// Haploid switches the posterior engine's prior and MAP extraction
	// into haploid mode (spec.md §4.5, §8 "Haploid mode").
	Haploid bool

	// BootstrapIterations is B, the number of multinomial resamples
	// the bootstrap quality estimator draws (spec.md §4.8; default 100
	// per spec.md's literal scenario 5).
	BootstrapIterations int

	// BootstrapSeed seeds the bootstrap's random source so results are
	// reproducible given identical inputs, mirroring elPrep's own
	// HaplotypeCaller.random reproducibility story.
	BootstrapSeed int64

	// PostHocSpanningFilter resolves the Open Question of spec.md §9:
	// "The source optionally filters non-spanning reads post-hoc
	// inside use_read; the behavior is currently a no-op." Exposed
	// here as an explicit, documented toggle. Default false (a
	// no-op), matching the source behavior; when true, reads whose
	// alignment does not span the repeat block's reference interval
	// are excluded from the posterior engine's accumulation.
	PostHocSpanningFilter bool

	// SpanningWindow is the ±bp window around the STR boundary a read
	// must overlap to count as "spanning" for the C9 guard (spec.md
	// §4.9, "no read spans ±5 bp of the STR boundary").
	SpanningWindow int32

	// StutterDiscoveryMinReads and StutterDiscoveryMinFraction are the
	// acceptance thresholds for a candidate allele in the
	// stutter-allele discovery loop (spec.md §4.6 step 2: "≥2 reads
	// AND ≥15% of that sample's spanning tracebacks").
	StutterDiscoveryMinReads    int
	StutterDiscoveryMinFraction float64

	// MinBaseQual mirrors elPrep's HaplotypeCaller.minBaseQual field.
	// No component reads it: alignment floors qualities at a fixed 6
	// (align.clampQual) regardless of this value.
	MinBaseQual byte
}

// Default returns the parameter set used when a caller has no reason
// to override anything: a diploid locus, the stutter support bounded
// to [-8, +8] bp (generous for periods up to 4, still meaningful for
// longer motifs), standard EM convergence tolerances, and a 100-draw
// bootstrap.
func Default() Params {
	return Params{
		MaxInsertion:                8,
		MaxDeletion:                 8,
		MaxEMIter:                   50,
		AbsLLConverge:               1e-4,
		FracLLConverge:              1e-6,
		RequireOneRead:              true,
		Haploid:                     false,
		BootstrapIterations:         100,
		BootstrapSeed:               47382911, // matches elPrep's default random seed constant
		PostHocSpanningFilter:       false,
		SpanningWindow:              5,
		StutterDiscoveryMinReads:    2,
		StutterDiscoveryMinFraction: 0.15,
		MinBaseQual:                 10,
	}
}
