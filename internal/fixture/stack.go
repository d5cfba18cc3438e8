package fixture

import (
	"errors"
	"fmt"
)

// ErrStackOverflow is returned when a frame would cross into the heap.
var ErrStackOverflow = errors.New("fixture: stack overflow into heap")

// Stack models a full-descending Cortex-M stack between the heap end and RAM end.
type Stack struct {
	top   uint32
	limit uint32
	sp    uint32
	low   uint32
}

// NewStack creates a stack whose pointer starts at top and may not go below limit.
func NewStack(top, limit uint32) (*Stack, error) {
	if top < limit {
		return nil, fmt.Errorf("fixture: stack top %#08x below heap end %#08x", top, limit)
	}
	return &Stack{top: top, limit: limit, sp: top, low: top}, nil
}

// Push reserves a frame of size bytes, keeping sp 8-byte aligned as AAPCS requires.
func (s *Stack) Push(size uint32) error {
	size = (size + 7) &^ 7
	if s.sp-s.limit < size {
		return fmt.Errorf("%w: sp %#08x, frame %d bytes, heap end %#08x", ErrStackOverflow, s.sp, size, s.limit)
	}
	s.sp -= size
	s.low = min(s.low, s.sp)
	return nil
}

// Pop releases a frame pushed with the same size.
func (s *Stack) Pop(size uint32) {
	size = (size + 7) &^ 7
	s.sp = min(s.sp+size, s.top)
}

// SP returns the current stack pointer.
func (s *Stack) SP() uint32 { return s.sp }

// HighWater returns the deepest stack usage seen, in bytes.
func (s *Stack) HighWater() uint32 { return s.top - s.low }
