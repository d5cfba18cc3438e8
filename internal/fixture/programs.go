package fixture

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cortexheap"
	"github.com/hupe1980/cortexheap/internal/conv"
	"github.com/hupe1980/cortexheap/internal/irq"
	"github.com/hupe1980/cortexheap/internal/vec"
)

// ErrUnknownProgram is returned by Lookup for an unregistered name.
var ErrUnknownProgram = errors.New("fixture: unknown program")

// Program is a fixture program.
type Program interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Programs returns the built-in fixtures in their canonical order.
func Programs() []Program {
	return []Program{
		Init{},
		Vec{N: 16},
		OOM{},
		Recursion{N: 20, FrameSize: 32},
		IRQ{Handlers: 4, BlockSize: 8},
	}
}

// Lookup returns the built-in program called name.
func Lookup(name string) (Program, error) {
	for _, p := range Programs() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
}

// debugString formats words like a Rust slice Debug print: [0, 1, 2].
func debugString(xs []uint32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", x)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Init initializes the heap, builds a three element vector and prints it.
type Init struct{}

func (Init) Name() string { return "init" }

func (Init) Run(ctx context.Context, env *Env) error {
	h, err := env.NewHeap()
	if err != nil {
		return err
	}

	xs, err := vec.From(heapAllocator{ctx: ctx, heap: h}, 0, 1, 2)
	if err != nil {
		return err
	}

	env.printf("%s\n", debugString(xs.Values()))
	return nil
}

// Vec pushes 0..N-1 and pops them back in reverse order.
type Vec struct {
	N uint32
}

func (Vec) Name() string { return "vec" }

func (p Vec) Run(ctx context.Context, env *Env) error {
	h, err := env.NewHeap()
	if err != nil {
		return err
	}

	xs, err := vec.New(heapAllocator{ctx: ctx, heap: h}, 0)
	if err != nil {
		return err
	}
	for i := uint32(0); i < p.N; i++ {
		if err := xs.Push(i); err != nil {
			return fmt.Errorf("push %d: %w", i, err)
		}
	}
	env.printf("%s\n", debugString(xs.Values()))

	for i := p.N; i > 0; i-- {
		x, err := xs.Pop()
		if err != nil {
			return fmt.Errorf("pop: %w", err)
		}
		if x != i-1 {
			return fmt.Errorf("pop: got %d, want %d", x, i-1)
		}
	}
	if _, err := xs.Pop(); !errors.Is(err, vec.ErrEmpty) {
		return fmt.Errorf("pop on empty vector: got %v, want %v", err, vec.ErrEmpty)
	}

	env.printf("popped %d\n", p.N)
	return nil
}

// OOM pushes onto a vector until the heap is exhausted. With the default
// handler the program halts inside Push and never returns.
type OOM struct{}

func (OOM) Name() string { return "oom" }

func (OOM) Run(ctx context.Context, env *Env) error {
	h, err := env.NewHeap()
	if err != nil {
		return err
	}

	xs, err := vec.New(heapAllocator{ctx: ctx, heap: h}, 0)
	if err != nil {
		return err
	}
	for i := uint32(0); ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := xs.Cap()
		if err := xs.Push(i); err != nil {
			return fmt.Errorf("push %d: %w", i, err)
		}
		if xs.Cap() != c {
			env.printf("len=%d cap=%d remaining=%d\n", xs.Len(), xs.Cap(), h.Remaining())
		}
	}
}

// Recursion computes Fibonacci recursively, pushing a frame per call onto a
// stack that grows from RAM end down toward the heap.
type Recursion struct {
	N         uint32
	FrameSize uint32
}

func (Recursion) Name() string { return "recursion" }

func (p Recursion) Run(ctx context.Context, env *Env) error {
	h, err := env.NewHeap()
	if err != nil {
		return err
	}

	stack, err := NewStack(env.RAMEnd, uint32(h.Region().End))
	if err != nil {
		return err
	}

	var fib func(n uint32) (uint32, error)
	fib = func(n uint32) (uint32, error) {
		if err := stack.Push(p.FrameSize); err != nil {
			return 0, err
		}
		defer stack.Pop(p.FrameSize)

		if n < 2 {
			return n, nil
		}
		a, err := fib(n - 1)
		if err != nil {
			return 0, err
		}
		b, err := fib(n - 2)
		if err != nil {
			return 0, err
		}
		return a + b, nil
	}

	v, err := fib(p.N)
	if err != nil {
		return err
	}

	// The result lives on the heap, below the stack it was computed on.
	addr, err := h.Alloc(ctx, cortexheap.Layout{Size: 4, Align: 4})
	if err != nil {
		return err
	}
	if err := h.Write32(addr, v); err != nil {
		return err
	}

	env.printf("fib(%d) = %d\n", p.N, v)
	env.printf("stack high water: %d bytes\n", stack.HighWater())
	return nil
}

// IRQ allocates from several interrupt handlers and the main thread at
// once, with the interrupt mask as the critical section, and checks that
// no two blocks overlap.
type IRQ struct {
	Handlers  int
	BlockSize uint32
}

func (IRQ) Name() string { return "irq" }

func (p IRQ) Run(ctx context.Context, env *Env) error {
	if !conv.IsPowerOfTwo(uint64(p.BlockSize)) {
		return fmt.Errorf("fixture: block size %d is not a power of two", p.BlockSize)
	}
	if p.Handlers < 0 {
		return fmt.Errorf("fixture: negative handler count %d", p.Handlers)
	}

	var mask irq.Mask

	h, err := env.NewHeap(
		cortexheap.WithCriticalSection(&mask),
		cortexheap.WithTracking(),
		cortexheap.WithOOMHandler(cortexheap.ReturnError),
	)
	if err != nil {
		return err
	}

	// Blocks are aligned to their size, so only the first one can need padding.
	cursor := uint64(h.Cursor())
	padding := conv.AlignUp(cursor, uint64(p.BlockSize)) - cursor
	usable := uint64(h.Remaining()) - min(padding, uint64(h.Remaining()))

	contexts := p.Handlers + 1
	perContext := int(usable / uint64(p.BlockSize) / uint64(contexts))
	if perContext == 0 {
		return fmt.Errorf("fixture: heap too small for %d contexts of %d-byte blocks", contexts, p.BlockSize)
	}

	layout := cortexheap.Layout{Size: p.BlockSize, Align: p.BlockSize}
	addrs := make([][]cortexheap.Addr, contexts)

	g, gctx := errgroup.WithContext(ctx)
	for c := range contexts {
		g.Go(func() error {
			for range perContext {
				a, err := h.Alloc(gctx, layout)
				if err != nil {
					return err
				}
				addrs[c] = append(addrs[c], a)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	all := slices.Concat(addrs...)
	slices.Sort(all)
	for i := 1; i < len(all); i++ {
		if all[i] < all[i-1]+cortexheap.Addr(p.BlockSize) {
			return fmt.Errorf("fixture: blocks at %s and %s overlap", all[i-1], all[i])
		}
	}

	occupied := h.Occupancy().GetCardinality()
	if want := uint64(len(all)) * uint64(p.BlockSize); occupied != want {
		return fmt.Errorf("fixture: %d bytes occupied, want %d", occupied, want)
	}
	if sections := mask.Sections(); sections != uint64(len(all)) {
		return fmt.Errorf("fixture: %d critical sections for %d allocations", sections, len(all))
	}

	env.printf("%d contexts allocated %d blocks, %d bytes, no overlap\n", contexts, len(all), occupied)
	return nil
}
