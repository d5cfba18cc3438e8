package cortexheap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cortexheap/internal/arena"
	"github.com/hupe1980/cortexheap/internal/dump"
	"github.com/hupe1980/cortexheap/internal/memmap"
	"github.com/hupe1980/cortexheap/internal/resource"
)

type (
	// Addr is a 32-bit target address.
	Addr = arena.Addr
	// Region is the half-open heap range [Start, End).
	Region = arena.Region
	// Layout is the size and alignment of an allocation request.
	Layout = arena.Layout
	// Stats tracks heap usage.
	Stats = arena.Stats
	// Compression selects the heap dump codec.
	Compression = dump.Compression
)

// Dump codecs.
const (
	CompressionNone = dump.CompressionNone
	CompressionLZ4  = dump.CompressionLZ4
	CompressionZSTD = dump.CompressionZSTD
)

// OOMHandler is invoked when an allocation fails for lack of memory.
//
// A handler that returns lets Alloc return the error to its caller. A fatal
// handler (Halt) never returns.
type OOMHandler func(ctx context.Context, layout Layout, err error)

// Halt is the default OOM handler. It panics with a *HaltError.
func Halt(_ context.Context, layout Layout, err error) {
	panic(&HaltError{Layout: layout, cause: err})
}

// ReturnError is an OOM handler that does nothing, so Alloc returns the error.
func ReturnError(context.Context, Layout, error) {}

// Heap is a bump-pointer heap over a fixed target address range.
//
// Alloc and Dealloc are safe for concurrent use. Close must not run
// concurrently with them.
type Heap struct {
	arena   *arena.Arena
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	oom     OOMHandler
}

// New initializes a heap at [start, start+size), by default [0x20000000, +128).
func New(optFns ...Option) (*Heap, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if o.checkPlacement {
		if err := memmap.ValidateHeap(uint32(o.start), o.size); err != nil {
			return nil, err
		}
	}

	var arenaOpts []arena.Option
	backing := "slice"
	if o.criticalSect != nil {
		arenaOpts = append(arenaOpts, arena.WithCriticalSection(o.criticalSect))
	}
	if o.anonymous {
		arenaOpts = append(arenaOpts, arena.WithAnonymousMapping())
		backing = "anonymous-mapping"
	}
	if o.tracking {
		arenaOpts = append(arenaOpts, arena.WithTracking())
	}
	if o.rc != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(o.rc))
	}

	a, err := arena.New(o.start, o.size, arenaOpts...)
	if err != nil {
		return nil, err
	}

	logger := o.logger.WithRegion(a.Region())
	logger.LogInit(context.Background(), a.Region(), backing)

	return &Heap{
		arena:   a,
		rc:      o.rc,
		logger:  logger,
		metrics: o.metrics,
		oom:     o.oomHandler,
	}, nil
}

// Alloc reserves layout.Size bytes aligned to layout.Align.
//
// When the heap is exhausted the OOM handler runs first; with the default
// Halt handler Alloc does not return.
func (h *Heap) Alloc(ctx context.Context, layout Layout) (Addr, error) {
	start := time.Now()
	addr, err := h.arena.Alloc(layout.Size, layout.Align)
	h.observe(ctx, layout, addr, time.Since(start), err)
	return addr, err
}

// AllocBytes allocates like Alloc and also returns the host view of the block.
func (h *Heap) AllocBytes(ctx context.Context, layout Layout) (Addr, []byte, error) {
	start := time.Now()
	addr, buf, err := h.arena.AllocBytes(layout.Size, layout.Align)
	h.observe(ctx, layout, addr, time.Since(start), err)
	return addr, buf, err
}

func (h *Heap) observe(ctx context.Context, layout Layout, addr Addr, d time.Duration, err error) {
	h.metrics.RecordAlloc(layout, d, err)
	h.logger.LogAlloc(ctx, layout, addr, err)

	var oom *arena.OOMError
	if errors.As(err, &oom) {
		h.metrics.RecordOOM(layout, oom.Remaining)
		h.logger.LogOOM(ctx, layout, oom.Cursor, oom.Remaining)
		h.oom(ctx, layout, err)
	}
}

// Dealloc releases an allocation. Memory is never reclaimed, so this only
// records the call.
func (h *Heap) Dealloc(_ context.Context, addr Addr, layout Layout) {
	h.arena.Dealloc(addr, layout.Size)
	h.metrics.RecordDealloc(layout)
}

// Bytes returns the host view of [addr, addr+size), which must be allocated.
func (h *Heap) Bytes(addr Addr, size uint32) ([]byte, error) {
	return h.arena.Bytes(addr, size)
}

// Read32 loads a little-endian word from heap memory.
func (h *Heap) Read32(addr Addr) (uint32, error) {
	b, err := h.arena.Bytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Write32 stores a little-endian word into heap memory.
func (h *Heap) Write32(addr Addr, v uint32) error {
	b, err := h.arena.Bytes(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Region returns the heap range.
func (h *Heap) Region() Region {
	return h.arena.Region()
}

// Cursor returns the next free address.
func (h *Heap) Cursor() Addr {
	return h.arena.Cursor()
}

// Remaining returns the number of free bytes after the cursor.
func (h *Heap) Remaining() uint32 {
	return h.arena.Remaining()
}

// Stats returns heap usage statistics.
func (h *Heap) Stats() Stats {
	return h.arena.Stats()
}

// Occupancy returns the allocated byte offsets (relative to the heap start),
// or nil unless the heap was created WithTracking.
func (h *Heap) Occupancy() *roaring.Bitmap {
	return h.arena.Occupancy()
}

// Image captures the allocated part of the heap.
func (h *Heap) Image() dump.Image {
	r := h.arena.Region()
	data := h.arena.Contents()
	return dump.Image{
		Start:  uint32(r.Start),
		End:    uint32(r.End),
		Cursor: uint32(r.Start) + uint32(len(data)),
		Data:   data,
	}
}

// Dump writes a heap image to w. Writes are throttled by the resource
// controller's IO limit, if any.
func (h *Heap) Dump(ctx context.Context, w io.Writer, c Compression) (int64, error) {
	start := time.Now()
	n, err := dump.Write(resource.NewRateLimitedWriter(ctx, w, h.rc), h.Image(), c)
	if err != nil {
		err = fmt.Errorf("heap dump: %w", err)
	}
	h.metrics.RecordDump(n, time.Since(start), err)
	h.logger.LogDump(ctx, n, c.String(), err)
	return n, err
}

// Close releases the host backing and any reserved memory budget.
func (h *Heap) Close() error {
	if h == nil {
		return nil
	}
	return h.arena.Close()
}

func (h *Heap) String() string {
	return h.arena.String()
}
