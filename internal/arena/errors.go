package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when a request does not fit in the remaining arena.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrInvalidAlignment is returned when the alignment is not a power of two.
	ErrInvalidAlignment = errors.New("arena: invalid alignment")
	// ErrInvalidRegion is returned when the arena range is empty or wraps.
	ErrInvalidRegion = errors.New("arena: invalid region")
	// ErrOutOfBounds is returned when accessing memory that was never allocated.
	ErrOutOfBounds = errors.New("arena: out of bounds")
	// ErrClosed is returned when using an arena after Close.
	ErrClosed = errors.New("arena: closed")
)

// OOMError describes a failed allocation.
type OOMError struct {
	Layout    Layout
	Cursor    Addr
	Remaining uint32
}

func (e *OOMError) Error() string {
	return fmt.Sprintf("arena: out of memory: requested %d bytes (align %d) at %#08x, %d remaining",
		e.Layout.Size, e.Layout.Align, uint32(e.Cursor), e.Remaining)
}

func (e *OOMError) Unwrap() error { return ErrOutOfMemory }
