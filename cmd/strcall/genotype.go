package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/strcall/config"
	"github.com/exascience/strcall/locus"
	"github.com/exascience/strcall/vcfout"
)

const genotypeHelp = "Usage: strcall genotype <input.json>... [flags]\n" +
	"[--haploid]           treat every locus as haploid\n" +
	"[--bootstrap]         run the multinomial bootstrap quality estimator\n" +
	"[--require-one-read]  require at least one aligned read per sample (default true)\n" +
	"[--retrain]           run one EM stutter re-estimation pass before emitting\n" +
	"[--format vcf|json]   output format (default vcf)\n"

// splitPositional separates the leading run of non-flag arguments
// (locus input paths) from the trailing flags, the same
// filenames-then-flags ordering cmd/filter.go uses
// ("elprep filter in.bam out.bam --flag ...").
func splitPositional(args []string) (paths, flagArgs []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}

// genotypeOutput is one locus's finished result, carried through the
// pipeline's fan-out stage to its ordered emission stage.
type genotypeOutput struct {
	path   string
	input  *locusInput
	result locus.Result
	err    error
}

func genotypeOne(path string, cfg config.Params, retrain, bootstrap bool) genotypeOutput {
	in, err := loadInput(path)
	if err != nil {
		return genotypeOutput{path: path, err: err}
	}

	l, err := locus.New(
		in.toRegion(),
		cfg,
		[]byte(in.LeftFlank),
		[]byte(in.RightFlank),
		in.toRepeatAlternates(),
		in.toStutterModel(),
		in.toRecords(),
		in.SampleNames,
		in.toCallSample(),
		nil, nil,
	)
	if err != nil {
		return genotypeOutput{path: path, input: in, err: err}
	}

	result := l.Run(bootstrap)
	if result.Called && retrain {
		if err := l.Retrain(); err != nil {
			return genotypeOutput{path: path, input: in, err: err}
		}
		result = l.Run(bootstrap)
	}
	return genotypeOutput{path: path, input: in, result: result}
}

// runGenotype implements the "genotype" subcommand: one or more locus
// JSON files are genotyped concurrently and emitted in input order.
//
// Grounded on filters/haplotypecaller.go's CallVariants driver, which
// fans assembly regions out across pipeline.LimitedPar and folds the
// ordered results back in with pipeline.StrictOrd +
// pipeline.ReceiveAndFinalize; generalized here from "per assembly
// region within one BAM" to "per locus input file," the natural unit
// of concurrency at this CLI's boundary.
func runGenotype() error {
	var (
		haploid        bool
		bootstrap      bool
		requireOneRead bool
		retrain        bool
		format         string
	)

	var flags flag.FlagSet
	flags.BoolVar(&haploid, "haploid", false, "treat every locus as haploid")
	flags.BoolVar(&bootstrap, "bootstrap", false, "run the multinomial bootstrap quality estimator")
	flags.BoolVar(&requireOneRead, "require-one-read", true, "require at least one aligned read per sample")
	flags.BoolVar(&retrain, "retrain", false, "run one EM stutter re-estimation pass before emitting")
	flags.StringVar(&format, "format", "vcf", "output format: vcf or json")

	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, genotypeHelp)
		os.Exit(1)
	}
	paths, flagArgs := splitPositional(os.Args[2:])
	if len(paths) == 0 {
		fmt.Fprint(os.Stderr, genotypeHelp)
		os.Exit(1)
	}
	if err := flags.Parse(flagArgs); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprint(os.Stderr, genotypeHelp)
			os.Exit(0)
		}
		return err
	}

	cfg := config.Default()
	cfg.Haploid = haploid
	cfg.RequireOneRead = requireOneRead

	var p pipeline.Pipeline
	next := 0
	p.Source(pipeline.NewFunc(-1, func(size int) (interface{}, int, error) {
		if next >= len(paths) {
			return nil, 0, nil
		}
		end := next + size
		if end > len(paths) {
			end = len(paths)
		}
		batch := make([]int, end-next)
		for i := range batch {
			batch[i] = next + i
		}
		next = end
		return batch, len(batch), nil
	}))
	p.SetVariableBatchSize(1, 1)

	var encodeErr error
	headerPrinted := false
	p.Add(
		pipeline.LimitedPar(runtime.GOMAXPROCS(0), pipeline.Receive(func(_ int, data interface{}) interface{} {
			batch := data.([]int)
			results := make([]genotypeOutput, len(batch))
			for i, idx := range batch {
				results[i] = genotypeOne(paths[idx], cfg, retrain, bootstrap)
			}
			return results
		})),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			for _, out := range data.([]genotypeOutput) {
				if out.err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", out.path, out.err)
					continue
				}
				if !headerPrinted && format == "vcf" {
					printVCFHeader(out.input.SampleNames)
					headerPrinted = true
				}
				if err := emit(out, format); err != nil {
					encodeErr = err
				}
			}
			return nil
		}, func() {})),
	)

	p.Run()
	if err := p.Err(); err != nil {
		return err
	}
	return encodeErr
}

func printVCFHeader(sampleNames []string) {
	for _, line := range vcfout.HeaderLines() {
		fmt.Println(line)
	}
	fmt.Println("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t" + strings.Join(sampleNames, "\t"))
}

func emit(out genotypeOutput, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out.result)
	case "vcf":
		if !out.result.Called {
			fmt.Fprintf(os.Stderr, "%s: locus not called: %s\n", out.path, out.result.Reason)
			return nil
		}
		fmt.Println(vcfout.WriteRecord(out.input.toRegion(), out.result, out.input.SampleNames))
		return nil
	default:
		return fmt.Errorf("strcall: unknown output format %q", format)
	}
}
