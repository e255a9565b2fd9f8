// Package pairing forms random pairs from eligible participants.
//
// Both policies shuffle with a uniform permutation and then pop from the
// tail, so every participant appears in at most one pair per call.
package pairing

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Pair is two participants matched together. For cross-category pairs
// First comes from the first category and Second from the second.
type Pair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Unconstrained pairs eligible participants among themselves. With fewer
// than two participants nothing is paired. An odd participant is
// returned as leftover.
func Unconstrained(eligible []string, rng *rand.Rand) ([]Pair, []string) {
	if len(eligible) < 2 {
		return nil, append([]string(nil), eligible...)
	}

	pool := append([]string(nil), eligible...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	pairs := make([]Pair, 0, len(pool)/2)
	for len(pool) >= 2 {
		n := len(pool)
		pairs = append(pairs, Pair{First: pool[n-1], Second: pool[n-2]})
		pool = pool[:n-2]
	}
	return pairs, pool
}

// CrossCategory pairs one participant from a with one from b until
// either side runs out. Leftovers of both sides are returned; at most
// one of them is non-empty.
func CrossCategory(a, b []string, rng *rand.Rand) ([]Pair, []string, []string) {
	if len(a) == 0 || len(b) == 0 {
		return nil, append([]string(nil), a...), append([]string(nil), b...)
	}

	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	rng.Shuffle(len(left), func(i, j int) { left[i], left[j] = left[j], left[i] })
	rng.Shuffle(len(right), func(i, j int) { right[i], right[j] = right[j], right[i] })

	pairs := make([]Pair, 0, min(len(left), len(right)))
	for len(left) > 0 && len(right) > 0 {
		pairs = append(pairs, Pair{First: left[len(left)-1], Second: right[len(right)-1]})
		left = left[:len(left)-1]
		right = right[:len(right)-1]
	}
	return pairs, left, right
}

// NewRand returns a generator seeded from crypto/rand, falling back to
// the runtime's random source if the system reader fails.
func NewRand() *rand.Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}
