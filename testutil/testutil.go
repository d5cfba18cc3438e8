package testutil

import (
	"math/rand"
	"sync"
)

// Layout is a generated allocation request.
type Layout struct {
	Size  uint32
	Align uint32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32n returns a pseudo-random uint32 in [0,n).
func (r *RNG) Uint32n(n uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(r.rand.Int63n(int64(n)))
}

// Align returns a random power-of-two alignment in [1, maxAlign].
// maxAlign must be a power of two.
func (r *RNG) Align(maxAlign uint32) uint32 {
	shifts := 0
	for v := maxAlign; v > 1; v >>= 1 {
		shifts++
	}
	return 1 << r.Intn(shifts+1)
}

// Layouts returns n random requests with sizes in [0, maxSize] and
// alignments in {1, 2, 4, 8, 16}.
func (r *RNG) Layouts(n int, maxSize uint32) []Layout {
	out := make([]Layout, n)
	for i := range out {
		out[i] = Layout{
			Size:  r.Uint32n(maxSize + 1),
			Align: r.Align(16),
		}
	}
	return out
}
