/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"math/rand/v2"
)

// Source supplies uniformly distributed integers in [0, n).
//
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// NewSource returns a PCG generator seeded from the runtime's entropy.
func NewSource() Source {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededSource returns a reproducible generator.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// shuffle permutes s in place with Fisher-Yates, walking positions from the
// end and swapping each with a uniformly chosen position at or before it.
func shuffle[T any](src Source, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
