package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/cortexheap"
	"github.com/hupe1980/cortexheap/internal/resource"
)

// Env is the machine a program runs on.
type Env struct {
	HeapStart cortexheap.Addr
	HeapSize  uint32
	// RAMEnd is the initial stack pointer; the stack grows down toward the heap.
	RAMEnd uint32

	Out       io.Writer
	Logger    *cortexheap.Logger
	Metrics   cortexheap.MetricsCollector
	Resources *resource.Controller

	heap *cortexheap.Heap
}

// NewHeap initializes the program's heap from the environment. opts are
// applied after the environment defaults. The heap is closed by the runner.
func (e *Env) NewHeap(opts ...cortexheap.Option) (*cortexheap.Heap, error) {
	if e.heap != nil {
		return nil, errors.New("fixture: heap already initialized")
	}

	base := []cortexheap.Option{
		cortexheap.WithHeapStart(e.HeapStart),
		cortexheap.WithHeapSize(e.HeapSize),
		cortexheap.WithLogger(e.Logger),
		cortexheap.WithMetricsCollector(e.Metrics),
	}
	if e.Resources != nil {
		base = append(base, cortexheap.WithResourceController(e.Resources))
	}

	h, err := cortexheap.New(append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	e.heap = h
	return h, nil
}

// Heap returns the heap created by NewHeap, or nil.
func (e *Env) Heap() *cortexheap.Heap {
	return e.heap
}

func (e *Env) printf(format string, args ...any) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, format, args...)
	}
}

// heapAllocator lets a vec.Vec draw from a Heap.
type heapAllocator struct {
	ctx  context.Context
	heap *cortexheap.Heap
}

func (a heapAllocator) AllocBytes(size, align uint32) (cortexheap.Addr, []byte, error) {
	return a.heap.AllocBytes(a.ctx, cortexheap.Layout{Size: size, Align: align})
}

func (a heapAllocator) Dealloc(addr cortexheap.Addr, size uint32) {
	a.heap.Dealloc(a.ctx, addr, cortexheap.Layout{Size: size, Align: 4})
}
