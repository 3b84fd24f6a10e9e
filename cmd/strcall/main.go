// Command strcall is the CLI entry point: it reads one or more locus
// descriptions as JSON, runs the genotype orchestrator on each, and
// writes the results as VCF text or JSON to stdout.
//
// Grounded on elPrep's main.go / cmd/filter.go dispatch shape
// (os.Args[1] subcommand switch, a hand-rolled flag.FlagSet per
// subcommand, no cobra/kingpin anywhere in the teacher) collapsed
// here into a single binary with one subcommand, since this core has
// one operation (genotype a locus) rather than elPrep's half-dozen.
package main

import (
	"fmt"
	"log"
	"os"
)

const programMessage = "strcall: sequence-based STR genotyper core\n"

const helpMessage = "Usage:\n" +
	"  strcall genotype <input.json>... [flags]\n" +
	"  strcall help\n"

func printHelp() {
	fmt.Fprint(os.Stderr, helpMessage)
}

func main() {
	fmt.Fprint(os.Stderr, programMessage)
	if len(os.Args) < 2 {
		log.Println("incorrect number of parameters.")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "genotype":
		err = runGenotype()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Printf("unknown command %q.", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
