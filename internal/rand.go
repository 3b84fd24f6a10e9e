// Package internal holds small utilities shared across strcall
// packages that are not part of the public API.
package internal

import "math/rand"

// Rand is the reproducible random source used by the bootstrap
// quality estimator (and any other component that needs repeatable
// sampling given a fixed seed).
type Rand = rand.Rand

// NewRand returns a random number generator seeded deterministically,
// so that running the same locus twice with the same seed produces
// bit-identical bootstrap draws.
func NewRand(seed int64) *Rand {
	return rand.New(rand.NewSource(seed))
}
