// Package locus implements the genotype orchestrator (spec.md §4.9,
// component C9): the per-locus state machine
// INIT → ALIGN → POSTERIOR → REFINE → (optional RETRAIN → ALIGN) → EMIT,
// owning the haplotype, the log-alignment matrix, the posterior
// tensor, and the trace cache for the duration of one locus.
//
// Grounded on elPrep's filters/haplotypecaller.go CallVariants
// multi-stage driver and its per-region call into
// filters/assigngls.go's assignGenotypeLikelihoods, generalized here
// from "per assembly region" to "per STR locus."
package locus

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/exascience/strcall/align"
	"github.com/exascience/strcall/bootstrap"
	"github.com/exascience/strcall/config"
	"github.com/exascience/strcall/emstutter"
	"github.com/exascience/strcall/haplotype"
	"github.com/exascience/strcall/locuserr"
	"github.com/exascience/strcall/mathx"
	"github.com/exascience/strcall/pool"
	"github.com/exascience/strcall/posterior"
	"github.com/exascience/strcall/read"
	"github.com/exascience/strcall/region"
	"github.com/exascience/strcall/refine"
	"github.com/exascience/strcall/stutter"
	"github.com/exascience/strcall/trace"
)

// Locus is one genotyping run: everything the orchestrator owns for
// the duration of a single locus (spec.md §3 "Lifecycle... Ownership:
// the orchestrator (C9) owns the haplotype and all dense arrays").
type Locus struct {
	ID     uuid.UUID
	Region region.Region
	Config config.Params

	hap     haplotype.Haplotype
	pool    *pool.Pool
	records []read.Record

	sampleNames []string
	sampleIndex []int
	callSample  []bool

	externalPriors *posterior.Tensor
	priorSamples   []bool

	matrix *align.Matrix
	cache  *trace.Cache
	post   *posterior.Tensor
}

// New constructs a Locus in the INIT state. leftFlank/rightFlank are
// the fixed single-alternate flank sequences; repeatAlternates[0] is
// the reference repeat sequence. sampleNames gives the canonical,
// ordered sample list; callSample is parallel to it (spec.md §3
// "Per-sample flags"). externalPriors may be nil.
func New(reg region.Region, cfg config.Params, leftFlank, rightFlank []byte, repeatAlternates [][]byte, stutterModel stutter.Model, records []read.Record, sampleNames []string, callSample []bool, externalPriors *posterior.Tensor, priorSamples []bool) (*Locus, error) {
	left := haplotype.FlankBlock{Alternates: [][]byte{leftFlank}}
	right := haplotype.FlankBlock{Alternates: [][]byte{rightFlank}}
	repeat := haplotype.RepeatBlock{
		Start:      reg.Start,
		Stop:       reg.Stop,
		Alternates: repeatAlternates,
		Stutter:    stutterModel,
	}
	hap := haplotype.New(left, repeat, right)

	sampleOf := make(map[string]int, len(sampleNames))
	for i, name := range sampleNames {
		sampleOf[name] = i
	}
	sampleIndex := make([]int, len(records))
	for r, rec := range records {
		idx, ok := sampleOf[rec.Sample]
		if !ok {
			locuserr.Assertf("locus: record %d references unknown sample %q", r, rec.Sample)
		}
		sampleIndex[r] = idx
	}

	p := pool.New()
	for i := range records {
		p.AddAlignment(&records[i])
	}
	p.Finalize()

	l := &Locus{
		ID:             uuid.New(),
		Region:         reg,
		Config:         cfg,
		hap:            hap,
		pool:           p,
		records:        records,
		sampleNames:    sampleNames,
		sampleIndex:    sampleIndex,
		callSample:     callSample,
		externalPriors: externalPriors,
		priorSamples:   priorSamples,
		cache:          trace.New(),
	}
	return l, nil
}

func (l *Locus) numSamples() int { return len(l.sampleNames) }

// spanningGuard implements the first C9 guard: no read spans ±5bp of
// the STR boundary (spec.md §4.9).
func (l *Locus) spanningGuard() error {
	window := l.Config.SpanningWindow
	lo := l.hap.RepeatStart() - window
	hi := l.hap.RepeatStop() + window
	for _, rec := range l.records {
		ops, err := read.ParseCigar(rec.Cigar)
		if err != nil {
			continue
		}
		span := read.ReferenceSpan(ops)
		start, stop := rec.MapStart, rec.MapStart+span-1
		if start <= hi && stop >= lo {
			return nil
		}
	}
	return locuserr.New(locuserr.LocusGuard, "no read spans the STR boundary window")
}

// priorsGuard implements the second C9 guard: external priors were
// requested but none match the locus.
func (l *Locus) priorsGuard() error {
	if l.externalPriors == nil {
		return nil
	}
	for _, ok := range l.priorSamples {
		if ok {
			return nil
		}
	}
	return locuserr.New(locuserr.LocusGuard, "no external allele priors match this locus")
}

// deletionBoundGuard implements the third C9 guard: the shortest
// repeat-block alternate is shorter than |max_deletion|.
func (l *Locus) deletionBoundGuard() error {
	if l.hap.Repeat.ShortestLen() < int(l.hap.Repeat.Stutter.MaxDeletion) {
		return locuserr.New(locuserr.LocusGuard, "shortest repeat-block alternate is below the deletion bound")
	}
	return nil
}

func (l *Locus) prior() *posterior.Tensor {
	if l.externalPriors != nil {
		return l.externalPriors
	}
	if l.Config.Haploid {
		return posterior.NewHaploidPrior(l.hap.NumAlleles(), l.numSamples())
	}
	return posterior.NewDiploidPrior(l.hap.NumAlleles(), l.numSamples())
}

func (l *Locus) align() {
	result := align.ComputeMatrix(l.hap, l.pool, l.records)
	l.matrix = result.Matrix
}

func (l *Locus) genotype() {
	var weights []float64
	if l.Config.PostHocSpanningFilter {
		weights = make([]float64, len(l.records))
		for r, rec := range l.records {
			ops, err := read.ParseCigar(rec.Cigar)
			if err != nil {
				continue
			}
			stop := rec.MapStart + read.ReferenceSpan(ops) - 1
			if rec.MapStart <= l.hap.RepeatStart() && stop >= l.hap.RepeatStop() {
				weights[r] = 1
			}
		}
	}
	post, _ := posterior.Compute(l.prior(), l.matrix, l.records, l.sampleIndex, weights)
	l.post = post
}

// discoveryRound runs one pass of spec.md §4.6 step 3's discover →
// abort-or-merge cycle, returning whether any candidate was merged.
func (l *Locus) discoveryRound() (bool, error) {
	candidates := refine.Discover(refine.DiscoveryInput{
		Haplotype:   l.hap,
		Matrix:      l.matrix,
		Cache:       l.cache,
		Pool:        l.pool,
		Records:     l.records,
		SampleIndex: l.sampleIndex,
		NumSamples:  l.numSamples(),
		Posterior:   l.post,
		MinReads:    l.Config.StutterDiscoveryMinReads,
		MinFraction: l.Config.StutterDiscoveryMinFraction,
	})
	if len(candidates) == 0 {
		return false, nil
	}
	if err := refine.CheckDeletionBound(candidates, l.hap.Repeat.Stutter.MaxDeletion); err != nil {
		return false, err
	}

	tempRepeat := haplotype.RepeatBlock{
		Start:      l.hap.Repeat.Start,
		Stop:       l.hap.Repeat.Stop,
		Alternates: candidates,
		Stutter:    l.hap.Repeat.Stutter,
	}
	tempHap := haplotype.New(l.hap.Left, tempRepeat, l.hap.Right)
	candidateResult := align.ComputeMatrix(tempHap, l.pool, l.records)

	merged := refine.Merge(l.hap, l.matrix, l.cache, candidates, candidateResult.Matrix)
	l.hap = merged.Haplotype
	l.matrix = merged.Matrix
	l.genotype()
	return true, nil
}

// prune runs spec.md §4.6's uncalled-allele pruning, a no-op when no
// allele is dropped.
func (l *Locus) prune() {
	eligible := func(s int) bool {
		if !l.Config.RequireOneRead {
			return true
		}
		for r, idx := range l.sampleIndex {
			if idx == s && l.records[r].SeedPosition >= 0 {
				return true
			}
		}
		return false
	}
	callSample := func(s int) bool { return l.callSample[s] }

	called := refine.CalledAlleles(l.post, eligible, callSample)
	merged := refine.Prune(l.hap, l.matrix, l.cache, called)
	if merged.Haplotype.NumAlleles() != l.hap.NumAlleles() {
		l.hap = merged.Haplotype
		l.matrix = merged.Matrix
		l.genotype()
	}
}

// Retrain runs the EM stutter re-estimator (spec.md §4.7) using
// integer bp-diffs already parsed into each record's BpDiff field,
// swaps in the refit model, clears the trace cache, and re-enters the
// ALIGN step. Returns locuserr.RetrainFail on non-convergence, per the
// fifth C9 guard.
func (l *Locus) Retrain() error {
	allelesBp := l.alleleBpDiffs()
	obs := make([]emstutter.Observation, 0, len(l.records))
	for r := range l.records {
		rec := &l.records[r]
		s := l.sampleIndex[r]
		gt := l.post.MAP(s)
		obs = append(obs, emstutter.Observation{
			BpDiff:      rec.BpDiff,
			LogP1:       rec.LogP1,
			LogP2:       rec.LogP2,
			AlleleOneBp: allelesBp[gt.A],
			AlleleTwoBp: allelesBp[gt.B],
		})
	}

	result, err := emstutter.Run(l.hap.Repeat.Stutter, obs, l.Config.MaxEMIter, l.Config.AbsLLConverge, l.Config.FracLLConverge)
	if err != nil {
		return err
	}

	newRepeat := l.hap.Repeat
	newRepeat.Stutter = result.Model
	l.hap = haplotype.New(l.hap.Left, newRepeat, l.hap.Right)
	l.cache.Clear()
	l.align()
	return nil
}

func (l *Locus) alleleBpDiffs() []int32 {
	ref := l.hap.Repeat.Alternates[0]
	diffs := make([]int32, l.hap.NumAlleles())
	for k, alt := range l.hap.Repeat.Alternates {
		diffs[k] = int32(len(alt) - len(ref))
	}
	return diffs
}

// Result is the per-locus outcome of Run: either a Genotyped result
// or a Failed reason, per spec.md §6's exit signaling.
type Result struct {
	ID      uuid.UUID
	Called  bool
	Reason  string
	Samples []SampleResult
	Locus   LocusOutputs
}

// SampleResult is the per-sample output spec.md §6 names.
type SampleResult struct {
	Sample              string
	MapA, MapB          int
	BpDiffA, BpDiffB    int32
	PhasedPosterior     float64
	UnphasedPosterior   float64
	PhaseProbability    float64
	TotalReads          int
	ReadsWithSNPInfo    int
	ReadsWithStutter    int
	ReadsWithFlankIndel int
	BpDosage            float64
	GLDiff              float64
	BootstrapQuality    float64
	HasBootstrap        bool
	Missing             bool
}

// LocusOutputs is the per-locus output spec.md §6 names.
type LocusOutputs struct {
	Reference    []byte
	Alternates   [][]byte
	BpDiffs      []int32
	AlleleCounts []int
	AggregateDP  int
	Stutter      stutter.Model
}

// Run drives the full state machine (spec.md §4.9) and returns the
// final Result. It never panics on ordinary genotyping conditions;
// assertion-class inconsistencies still panic via locuserr.Assertf.
func (l *Locus) Run(runBootstrap bool) Result {
	if err := l.deletionBoundGuard(); err != nil {
		return l.failed(err)
	}
	if err := l.spanningGuard(); err != nil {
		return l.failed(err)
	}
	if err := l.priorsGuard(); err != nil {
		return l.failed(err)
	}

	l.align()
	l.genotype()

	if l.externalPriors == nil {
		for {
			merged, err := l.discoveryRound()
			if err != nil {
				return l.failed(err)
			}
			if !merged {
				break
			}
		}
		l.prune()
	}

	return l.emit(runBootstrap)
}

func (l *Locus) failed(err error) Result {
	return Result{ID: l.ID, Called: false, Reason: err.Error()}
}

func (l *Locus) emit(runBootstrap bool) Result {
	allelesBp := l.alleleBpDiffs()
	numAlleles := l.hap.NumAlleles()
	numSamples := l.numSamples()

	var qualities []float64
	if runBootstrap {
		qualities = bootstrap.Quality(l.prior(), l.post, l.matrix, l.records, l.sampleIndex, numSamples, l.Config.BootstrapIterations, l.Config.BootstrapSeed)
	}

	samples := make([]SampleResult, numSamples)
	alleleCounts := make([]int, numAlleles)

	perSampleReads := make([][]int, numSamples)
	for r, s := range l.sampleIndex {
		perSampleReads[s] = append(perSampleReads[s], r)
	}

	for s := 0; s < numSamples; s++ {
		reads := perSampleReads[s]
		sr := SampleResult{Sample: l.sampleNames[s]}

		if l.Config.RequireOneRead && !hasAlignedRead(l.records, reads) {
			sr.Missing = true
			samples[s] = sr
			continue
		}

		gt := l.post.MAP(s)
		sr.MapA, sr.MapB = gt.A, gt.B
		sr.BpDiffA, sr.BpDiffB = allelesBp[gt.A], allelesBp[gt.B]
		sr.PhasedPosterior = math.Exp(gt.LogPosterior)
		sr.UnphasedPosterior = math.Exp(l.post.UnphasedPosterior(gt.A, gt.B, s))
		sr.PhaseProbability = l.post.PhaseProbability(gt.A, gt.B, s)
		sr.GLDiff = glDiff(l.post, s, numAlleles)
		sr.BpDosage = bpDosage(l.post, s, numAlleles, allelesBp, l.Config.Haploid)

		for _, r := range reads {
			sr.TotalReads++
			rec := &l.records[r]
			if rec.LogP1 != rec.LogP2 {
				sr.ReadsWithSNPInfo++
			}
			if rec.SeedPosition < 0 {
				continue
			}
			bases := l.pool.RepresentativeBases(rec.PoolIndex)
			quals := l.pool.RepresentativeQuals(rec.PoolIndex)
			phaseAllele := gt.A
			if l.matrix.At(r, gt.B) > l.matrix.At(r, gt.A) {
				phaseAllele = gt.B
			}
			tr, ok := l.cache.Get(rec.PoolIndex, phaseAllele)
			if !ok {
				tr = align.TraceAlignment(bases, quals, l.hap, phaseAllele)
				l.cache.Put(rec.PoolIndex, phaseAllele, tr)
			}
			if tr.StutterSize != 0 {
				sr.ReadsWithStutter++
			}
			if len(tr.FlankIndels) > 0 {
				sr.ReadsWithFlankIndel++
			}
		}

		if l.callSample[s] {
			alleleCounts[gt.A]++
			alleleCounts[gt.B]++
		}
		if runBootstrap {
			sr.HasBootstrap = true
			sr.BootstrapQuality = qualities[s]
		}
		samples[s] = sr
	}

	return Result{
		ID:      l.ID,
		Called:  true,
		Samples: samples,
		Locus: LocusOutputs{
			Reference:    l.hap.Repeat.Alternates[0],
			Alternates:   l.hap.Repeat.Alternates[1:],
			BpDiffs:      allelesBp,
			AlleleCounts: alleleCounts,
			AggregateDP:  len(l.records),
			Stutter:      l.hap.Repeat.Stutter,
		},
	}
}

func hasAlignedRead(records []read.Record, indices []int) bool {
	for _, r := range indices {
		if records[r].SeedPosition >= 0 {
			return true
		}
	}
	return false
}

// glDiff returns the genotype-likelihood difference, in log10 units,
// between the MAP genotype and the next best genotype for sample s
// (spec.md §6, §8). num_alleles == 1 forces the sentinel -1000
// (spec.md §8's boundary behavior).
//
// Ranked over unordered genotypes, not raw ordered tensor cells: a
// heterozygous MAP (a,b) has its mirror phase (b,a) sitting at an
// essentially equal ordered-cell value, which would otherwise always
// surface as the "next best" genotype and collapse every heterozygous
// GLDiff to ~0. HipSTR's own gl-difference computation
// (seq_stutter_genotyper.cpp:963-997) builds its gls array only over
// index_2 <= index_1, combining both phase orderings with
// log_sum_exp first; UnphasedPosterior does exactly that collapse.
func glDiff(post *posterior.Tensor, s, numAlleles int) float64 {
	if numAlleles == 1 {
		return -1000
	}
	vals := make([]float64, 0, numAlleles*(numAlleles+1)/2)
	for a := 0; a < numAlleles; a++ {
		for b := 0; b <= a; b++ {
			vals = append(vals, post.UnphasedPosterior(a, b, s))
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	return mathx.Log10(vals[0]) - mathx.Log10(vals[1])
}

// bpDosage returns the posterior-weighted mean of a_bp+b_bp, halved
// for haploid (spec.md §6).
func bpDosage(post *posterior.Tensor, s, numAlleles int, allelesBp []int32, haploid bool) float64 {
	var dosage float64
	for a := 0; a < numAlleles; a++ {
		for b := 0; b < numAlleles; b++ {
			w := math.Exp(post.At(a, b, s))
			dosage += w * float64(allelesBp[a]+allelesBp[b])
		}
	}
	if haploid {
		dosage /= 2
	}
	return dosage
}
