package app

import "math/rand"

// seedFromString derives a 32-bit seed from a string key using FNV-1a. The
// hash is order- and character-sensitive, so distinct date keys land on
// distinct generator states.
func seedFromString(key string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	if h == 0 {
		h = 1 // xorshift must not start at zero
	}
	return h
}

// seededRand is a deterministic xorshift32 generator. Given the same seed
// string it emits the same draw sequence on every platform and every run;
// that reproducibility is what daily selection relies on.
type seededRand struct {
	state uint32
}

// NewSeededRand builds a generator fully determined by key.
func NewSeededRand(key string) *seededRand {
	return &seededRand{state: seedFromString(key)}
}

func (r *seededRand) next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Intn returns a uniform draw in [0, n). n must be positive. Draws below
// 2^32 mod n are rejected, as math/rand does, so that every residue class
// keeps an equal share of the generator's range.
func (r *seededRand) Intn(n int) int {
	bound := uint32(n)
	min := -bound % bound
	v := r.next()
	for v < min {
		v = r.next()
	}
	return int(v % bound)
}

// Shuffle returns a Fisher-Yates permutation of items driven by r, leaving
// the input untouched.
func Shuffle[T any](items []T, r interface{ Intn(int) int }) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// unseededRand wraps math/rand for the shuffles that must NOT be
// reproducible, i.e. per-session answer-option order.
func unseededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
