// Package locuserr defines the per-locus error kinds spec.md §7
// enumerates: guard failures, stuck refinement, failed EM retraining,
// and programming-error assertions. Per-read problems are not
// represented here — those are swallowed into counters by their
// caller, per spec.md §7 kind 2.
package locuserr

import "fmt"

// Kind identifies which of spec.md §7's locus-level error classes an
// Error belongs to.
type Kind int

const (
	// LocusGuard covers pre-checked invariants that make a locus
	// unreliable: no spanning reads, unavailable reference, a
	// shortest repeat alternate below the deletion bound.
	LocusGuard Kind = iota
	// RefinerStuck is raised when stutter-allele discovery proposes a
	// candidate below the deletion bound.
	RefinerStuck
	// RetrainFail is raised when EM re-estimation fails to converge
	// or produces invalid parameters.
	RetrainFail
)

func (k Kind) String() string {
	switch k {
	case LocusGuard:
		return "LocusGuard"
	case RefinerStuck:
		return "RefinerStuck"
	case RetrainFail:
		return "RetrainFail"
	default:
		return "Unknown"
	}
}

// Error is a per-locus failure: the orchestrator returns it as
// Failed(reason) without partial emission (spec.md §6, §7).
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Reason) }

// New constructs a locus-level Error.
func New(kind Kind, reason string) *Error { return &Error{Kind: kind, Reason: reason} }

// Assertf panics with a formatted message, used for spec.md §7 kind
// 5 (Inconsistency) programming errors that must fail loudly rather
// than be reported as an ordinary locus failure: haplotype-block
// count not 3, allele-count mismatch after refinement, a repeat block
// lacking stutter info.
func Assertf(format string, args ...interface{}) {
	panic(fmt.Sprintf("strcall: inconsistency: "+format, args...))
}
