package conv

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// AlignUp rounds v up to the next multiple of align.
// align must be a power of two; the result is computed in 64 bits.
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
