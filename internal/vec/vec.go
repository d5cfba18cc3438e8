// Package vec implements a growable array of 32-bit words stored in heap memory.
//
// Elements are little-endian words at [Addr, Addr+4*Cap). Growth allocates a
// new block, copies the live elements and deallocates the old block, which on
// a bump heap leaks it: every reallocation permanently consumes the old
// capacity. That is the behavior the push/pop fixtures exercise on target.
package vec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/cortexheap/internal/arena"
	"github.com/hupe1980/cortexheap/internal/conv"
)

const (
	wordSize  = 4
	wordAlign = 4
	minCap    = 4
)

// ErrEmpty is returned by Pop on an empty Vec.
var ErrEmpty = errors.New("vec: empty")

// ErrIndex is returned for an index outside [0, Len).
var ErrIndex = errors.New("vec: index out of range")

// Allocator is the heap interface a Vec draws memory from.
type Allocator interface {
	AllocBytes(size, align uint32) (arena.Addr, []byte, error)
	Dealloc(addr arena.Addr, size uint32)
}

// Vec is a growable array of uint32 in heap memory. It is not safe for concurrent use.
type Vec struct {
	alloc Allocator
	addr  arena.Addr
	buf   []byte
	len   uint32
	cap   uint32
}

// New creates an empty Vec with room for capacity elements.
// A zero capacity defers the first allocation to the first Push.
func New(a Allocator, capacity uint32) (*Vec, error) {
	v := &Vec{alloc: a}
	if capacity > 0 {
		if err := v.grow(capacity); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// From creates a Vec holding values with exactly len(values) capacity.
func From(a Allocator, values ...uint32) (*Vec, error) {
	n, err := conv.IntToUint32(len(values))
	if err != nil {
		return nil, err
	}
	v, err := New(a, n)
	if err != nil {
		return nil, err
	}
	for _, x := range values {
		if err := v.Push(x); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Push appends x, growing the backing block when full.
// On allocation failure the Vec is left unchanged.
func (v *Vec) Push(x uint32) error {
	if v.len == v.cap {
		next := max(v.cap*2, minCap)
		if err := v.grow(next); err != nil {
			return err
		}
	}
	binary.LittleEndian.PutUint32(v.buf[v.len*wordSize:], x)
	v.len++
	return nil
}

// Pop removes and returns the last element.
func (v *Vec) Pop() (uint32, error) {
	if v.len == 0 {
		return 0, ErrEmpty
	}
	v.len--
	return binary.LittleEndian.Uint32(v.buf[v.len*wordSize:]), nil
}

// Get returns the element at i.
func (v *Vec) Get(i uint32) (uint32, error) {
	if i >= v.len {
		return 0, fmt.Errorf("%w: %d >= %d", ErrIndex, i, v.len)
	}
	return binary.LittleEndian.Uint32(v.buf[i*wordSize:]), nil
}

// Set overwrites the element at i.
func (v *Vec) Set(i, x uint32) error {
	if i >= v.len {
		return fmt.Errorf("%w: %d >= %d", ErrIndex, i, v.len)
	}
	binary.LittleEndian.PutUint32(v.buf[i*wordSize:], x)
	return nil
}

// Len returns the number of elements.
func (v *Vec) Len() uint32 { return v.len }

// Cap returns the number of elements the current block can hold.
func (v *Vec) Cap() uint32 { return v.cap }

// Addr returns the address of the current backing block (0 before the first allocation).
func (v *Vec) Addr() arena.Addr { return v.addr }

// Values returns a copy of the elements.
func (v *Vec) Values() []uint32 {
	out := make([]uint32, v.len)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(v.buf[i*wordSize:])
	}
	return out
}

func (v *Vec) String() string {
	return fmt.Sprint(v.Values())
}

func (v *Vec) grow(capacity uint32) error {
	size := uint64(capacity) * wordSize
	if size > 1<<32-1 {
		return fmt.Errorf("vec: capacity %d too large", capacity)
	}

	addr, buf, err := v.alloc.AllocBytes(uint32(size), wordAlign)
	if err != nil {
		return err
	}

	if v.cap > 0 {
		copy(buf, v.buf[:v.len*wordSize])
		v.alloc.Dealloc(v.addr, v.cap*wordSize)
	}

	v.addr = addr
	v.buf = buf
	v.cap = capacity
	return nil
}
