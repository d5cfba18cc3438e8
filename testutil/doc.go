// Package testutil provides testing utilities for cortexheap.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and generators for random
// allocation request sequences used by property-style tests.
//
//	rng := testutil.NewRNG(seed)
//	reqs := rng.Layouts(100, 64)  // 100 requests, sizes in [0, 64]
package testutil
