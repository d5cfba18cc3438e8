package cortexheap

import (
	"fmt"

	"github.com/hupe1980/cortexheap/internal/arena"
	"github.com/hupe1980/cortexheap/internal/memmap"
)

var (
	// ErrOutOfMemory is returned (after the OOM handler runs) when a request does not fit.
	ErrOutOfMemory = arena.ErrOutOfMemory
	// ErrInvalidAlignment is returned when an alignment is not a power of two.
	ErrInvalidAlignment = arena.ErrInvalidAlignment
	// ErrInvalidRegion is returned when the heap range is empty or wraps.
	ErrInvalidRegion = arena.ErrInvalidRegion
	// ErrInvalidHeap is returned when the heap is not placed in writable RAM.
	ErrInvalidHeap = memmap.ErrInvalidHeap
	// ErrOutOfBounds is returned when reading or writing memory that was never allocated.
	ErrOutOfBounds = arena.ErrOutOfBounds
	// ErrClosed is returned when using a heap after Close.
	ErrClosed = arena.ErrClosed
)

// OOMError describes a failed allocation; it wraps ErrOutOfMemory.
type OOMError = arena.OOMError

// HaltError is the panic value raised by Halt.
//
// It stands in for the breakpoint-and-spin of a bare-metal alloc error
// handler: the program does not continue past a failed allocation.
type HaltError struct {
	Layout Layout
	cause  error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted: allocation of %d bytes (align %d) failed: %v", e.Layout.Size, e.Layout.Align, e.cause)
}

func (e *HaltError) Unwrap() error { return e.cause }
