// Package trace implements the Trace cache (spec.md §3 "Trace
// cache", §9 "Trace cache keyed by pool"): a record of the back-
// traced alignment for a given (pool_index, allele_index) pair,
// including the integer stutter size applied to the repeat block and
// any flank insertion/deletion descriptors.
package trace

// FlankIndel describes one insertion or deletion the traceback found
// in a flank block (spec.md §3: "any flank insertion/deletion
// descriptors").
type FlankIndel struct {
	Left      bool // true for the left flank, false for the right
	Pos       int32
	Length    int32
	Insertion bool // true = insertion, false = deletion
}

// Trace is the back-traced alignment for one (read, allele) pair: the
// integer stutter size applied to the repeat block, the reconstructed
// repeat-block sequence actually implied by the traceback (used by
// the stutter-allele discovery loop, spec.md §4.6 step 2), and any
// flank indels.
type Trace struct {
	StutterSize   int32
	RepeatSeq     []byte
	FlankIndels   []FlankIndel
	LogLikelihood float64

	// Spans reports whether the traceback's aligned read range starts
	// within the left flank and ends within the right flank, i.e. the
	// read fully spans the repeat block rather than merely clipping
	// into it. Stutter-allele discovery only counts spanning
	// tracebacks in its denominator.
	Spans bool
}

// Key identifies a cached trace by pool index and allele index,
// spec.md §9's "keys are (pool_index, allele_index)".
type Key struct {
	PoolIndex   int
	AlleleIndex int
}

// Cache is the orchestrator-owned trace cache. It is cleared whenever
// the haplotype or stutter model changes (spec.md §5), and reindexed
// (not cleared) when only the allele set changes during refinement
// (spec.md §4.6, §9).
type Cache struct {
	entries map[Key]Trace
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]Trace)}
}

// Get returns the cached trace for (poolIndex, alleleIndex), if any.
func (c *Cache) Get(poolIndex, alleleIndex int) (Trace, bool) {
	t, ok := c.entries[Key{poolIndex, alleleIndex}]
	return t, ok
}

// Put stores t under (poolIndex, alleleIndex), computing it lazily
// being the caller's responsibility — Put never computes, only
// stores.
func (c *Cache) Put(poolIndex, alleleIndex int, t Trace) {
	c.entries[Key{poolIndex, alleleIndex}] = t
}

// Clear empties the cache, used whenever the haplotype or stutter
// model changes (spec.md §5).
func (c *Cache) Clear() {
	c.entries = make(map[Key]Trace)
}

// Len reports how many traces are currently cached.
func (c *Cache) Len() int { return len(c.entries) }

// Reindex rebuilds the cache after an allele-set mutation, re-deriving
// the correct direction from first principles per spec.md §9's Open
// Question: "re-derive the correct mapping from first principles
// (new_index = str_block.index_of(old_sequence))". indexOf maps an
// old allele index to its new index, or a negative value
// if that allele was dropped (pruning) or doesn't exist yet
// (discovery, handled separately by the caller re-aligning new
// columns before calling Reindex). Entries whose allele was dropped
// are discarded.
func (c *Cache) Reindex(indexOf func(allele int) int) {
	next := make(map[Key]Trace, len(c.entries))
	for k, t := range c.entries {
		newAllele := indexOf(k.AlleleIndex)
		if newAllele < 0 {
			continue
		}
		next[Key{k.PoolIndex, newAllele}] = t
	}
	c.entries = next
}
