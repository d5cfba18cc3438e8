// Package arena provides the bump-pointer heap allocator.
//
// An Arena owns a fixed address range [start, end) and a cursor that only
// moves forward. Alloc rounds the cursor up to the requested alignment,
// hands out [aligned, aligned+size) and advances the cursor; Dealloc is a
// no-op because memory is never reclaimed.
//
// # Concurrency Model
//
// The cursor is the only shared mutable state. By default it is advanced with
// a lock-free compare-and-swap, so thread code and interrupt handlers
// (goroutines) may allocate concurrently. WithCriticalSection serializes
// every cursor update through a sync.Locker instead, which models the
// interrupt-free critical section used on target (see package irq).
//
// Close must not run concurrently with allocations.
//
// # Backing Memory
//
// Addresses are 32-bit target addresses. The bytes behind them live in a
// host buffer: a Go slice by default, or an anonymous off-heap mapping with
// WithAnonymousMapping. Fresh memory is always zero because nothing is ever
// handed out twice.
//
// # Failure
//
// A request that does not fit returns an *OOMError wrapping ErrOutOfMemory
// and leaves the cursor untouched. Escalation (halting) is the caller's job.
package arena
