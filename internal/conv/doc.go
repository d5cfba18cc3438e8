// Package conv provides checked integer conversions and alignment arithmetic.
//
// Heap addresses are 32-bit, while host lengths are int and intermediate
// arithmetic is done in uint64 so that rounding near the top of the address
// space cannot wrap. These helpers keep those boundaries explicit.
//
// For conversions that are provably safe by construction (values already
// bounded by a region size), use direct casts instead.
package conv
