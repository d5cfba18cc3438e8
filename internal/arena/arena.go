package arena

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cortexheap/internal/conv"
	"github.com/hupe1980/cortexheap/internal/irq"
	"github.com/hupe1980/cortexheap/internal/mmap"
)

// DefaultAlignment is the alignment used when a layout asks for 0.
const DefaultAlignment = 1

// Addr is a 32-bit target address.
type Addr uint32

func (a Addr) String() string {
	return fmt.Sprintf("%#08x", uint32(a))
}

// Region is the half-open address range [Start, End).
type Region struct {
	Start Addr
	End   Addr
}

// Size returns the number of bytes in the region.
func (r Region) Size() uint32 {
	return uint32(r.End - r.Start)
}

// Contains reports whether addr lies within the region.
func (r Region) Contains(addr Addr) bool {
	return addr >= r.Start && addr < r.End
}

func (r Region) String() string {
	return fmt.Sprintf("[%#08x, %#08x)", uint32(r.Start), uint32(r.End))
}

// Layout is the size and alignment of an allocation request.
type Layout struct {
	Size  uint32
	Align uint32
}

// MemoryAcquirer reserves host memory for the arena backing.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Stats tracks arena usage.
//
//   - Allocs/Deallocs/Failures: cumulative call counts
//   - BytesRequested: sum of requested sizes
//   - BytesPadding: bytes skipped to satisfy alignment
//   - Used: cursor - start
//   - Capacity: end - start
type Stats struct {
	Allocs         uint64
	Deallocs       uint64
	Failures       uint64
	BytesRequested uint64
	BytesPadding   uint64
	Used           uint32
	Capacity       uint32
}

type atomicStats struct {
	Allocs         atomic.Uint64
	Deallocs       atomic.Uint64
	Failures       atomic.Uint64
	BytesRequested atomic.Uint64
	BytesPadding   atomic.Uint64
}

// Arena is a bump-pointer allocator over a fixed region.
type Arena struct {
	region Region
	data   []byte
	// cursor holds the next free address, widened so alignment rounding cannot wrap.
	cursor atomic.Uint64

	cs       sync.Locker
	mapping  *mmap.Mapping
	anon     bool
	acquirer MemoryAcquirer

	track bool
	occMu sync.Mutex
	occ   *roaring.Bitmap

	stats  atomicStats
	closed atomic.Bool
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithCriticalSection serializes cursor updates through l instead of CAS.
func WithCriticalSection(l sync.Locker) Option {
	return func(a *Arena) {
		a.cs = l
	}
}

// WithAnonymousMapping backs the arena with off-heap anonymous memory.
func WithAnonymousMapping() Option {
	return func(a *Arena) {
		a.anon = true
	}
}

// WithTracking records every allocated byte in an occupancy bitmap.
func WithTracking() Option {
	return func(a *Arena) {
		a.track = true
	}
}

// WithMemoryAcquirer reserves the arena size from acquirer for the arena's lifetime.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an arena over [start, start+size).
// The end address must fit in 32 bits, so the last byte of the address space
// can never be part of an arena.
func New(start Addr, size uint32, opts ...Option) (*Arena, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: zero size", ErrInvalidRegion)
	}
	end, err := conv.Uint64ToUint32(uint64(start) + uint64(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %#08x+%d ends beyond the 32-bit address space", ErrInvalidRegion, uint32(start), size)
	}

	a := &Arena{
		region: Region{Start: start, End: Addr(end)},
	}
	for _, opt := range opts {
		opt(a)
	}

	sizeInt, err := conv.Uint32ToInt(size)
	if err != nil {
		return nil, err
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(int64(size)); err != nil {
			return nil, fmt.Errorf("arena: reserve %d bytes: %w", size, err)
		}
	}

	if a.anon {
		mapping, err := mmap.MapAnon(sizeInt)
		if err != nil {
			a.release()
			return nil, fmt.Errorf("arena: map anonymous backing: %w", err)
		}
		// Heap access is pointer chasing, not streaming.
		_ = mapping.Advise(mmap.AccessRandom)
		a.mapping = mapping
		a.data = mapping.Bytes()
	} else {
		a.data = make([]byte, sizeInt)
	}

	if a.track {
		a.occ = roaring.New()
	}

	a.cursor.Store(uint64(start))
	return a, nil
}

// Alloc reserves size bytes aligned to align and returns their start address.
// align 0 is treated as DefaultAlignment.
func (a *Arena) Alloc(size, align uint32) (Addr, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if align == 0 {
		align = DefaultAlignment
	}
	if !conv.IsPowerOfTwo(uint64(align)) {
		return 0, fmt.Errorf("%w: %d is not a power of two", ErrInvalidAlignment, align)
	}

	var (
		cur, aligned, next uint64
		ok                 bool
	)
	if a.cs != nil {
		irq.Free(a.cs, func() {
			cur, aligned, next, ok = a.bump(size, align)
			if ok {
				a.cursor.Store(next)
			}
		})
	} else {
		for {
			cur, aligned, next, ok = a.bump(size, align)
			if !ok || a.cursor.CompareAndSwap(cur, next) {
				break
			}
		}
	}

	if !ok {
		a.stats.Failures.Add(1)
		return 0, &OOMError{
			Layout:    Layout{Size: size, Align: align},
			Cursor:    Addr(cur),
			Remaining: uint32(uint64(a.region.End) - cur),
		}
	}

	a.stats.Allocs.Add(1)
	a.stats.BytesRequested.Add(uint64(size))
	a.stats.BytesPadding.Add(aligned - cur)

	if a.track && size > 0 {
		off := aligned - uint64(a.region.Start)
		a.occMu.Lock()
		a.occ.AddRange(off, off+uint64(size))
		a.occMu.Unlock()
	}

	return Addr(aligned), nil
}

// bump computes the next cursor for a request without publishing it.
func (a *Arena) bump(size, align uint32) (cur, aligned, next uint64, ok bool) {
	cur = a.cursor.Load()
	aligned = conv.AlignUp(cur, uint64(align))
	next = aligned + uint64(size)
	return cur, aligned, next, next <= uint64(a.region.End)
}

// AllocBytes allocates like Alloc and also returns the backing view.
func (a *Arena) AllocBytes(size, align uint32) (Addr, []byte, error) {
	addr, err := a.Alloc(size, align)
	if err != nil {
		return 0, nil, err
	}
	off := uint32(addr - a.region.Start)
	return addr, a.data[off : off+size : off+size], nil
}

// Dealloc is a no-op: memory is never reclaimed.
func (a *Arena) Dealloc(_ Addr, _ uint32) {
	a.stats.Deallocs.Add(1)
}

// Bytes returns the backing view of [addr, addr+size).
// The range must lie within memory that has already been allocated.
func (a *Arena) Bytes(addr Addr, size uint32) ([]byte, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	end := uint64(addr) + uint64(size)
	if addr < a.region.Start || end > a.cursor.Load() {
		return nil, fmt.Errorf("%w: [%#08x, +%d) outside %s used up to %#08x",
			ErrOutOfBounds, uint32(addr), size, a.region, a.cursor.Load())
	}
	off := uint32(addr - a.region.Start)
	return a.data[off : off+size : off+size], nil
}

// Contents returns a copy of all allocated memory, [start, cursor).
// Writers running concurrently may or may not be reflected.
func (a *Arena) Contents() []byte {
	if a.closed.Load() {
		return nil
	}
	used := a.Used()
	out := make([]byte, used)
	copy(out, a.data[:used])
	return out
}

// Region returns the arena range.
func (a *Arena) Region() Region {
	return a.region
}

// Cursor returns the next free address.
func (a *Arena) Cursor() Addr {
	return Addr(a.cursor.Load())
}

// Used returns the number of bytes between start and the cursor.
func (a *Arena) Used() uint32 {
	return uint32(a.cursor.Load() - uint64(a.region.Start))
}

// Remaining returns the number of bytes between the cursor and end.
func (a *Arena) Remaining() uint32 {
	return uint32(uint64(a.region.End) - a.cursor.Load())
}

// Occupancy returns a copy of the allocated byte offsets, or nil without WithTracking.
func (a *Arena) Occupancy() *roaring.Bitmap {
	if !a.track {
		return nil
	}
	a.occMu.Lock()
	defer a.occMu.Unlock()
	return a.occ.Clone()
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Allocs:         a.stats.Allocs.Load(),
		Deallocs:       a.stats.Deallocs.Load(),
		Failures:       a.stats.Failures.Load(),
		BytesRequested: a.stats.BytesRequested.Load(),
		BytesPadding:   a.stats.BytesPadding.Load(),
		Used:           a.Used(),
		Capacity:       a.region.Size(),
	}
}

// Usage returns the used share of the arena as a percentage.
func (a *Arena) Usage() float64 {
	return float64(a.Used()) / float64(a.region.Size()) * 100
}

// Close releases the host backing. The arena cannot be used afterwards.
func (a *Arena) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	var err error
	if a.mapping != nil {
		err = a.mapping.Close()
	}
	a.release()
	return err
}

func (a *Arena) release() {
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(int64(a.region.Size()))
	}
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{region: %s, used: %d/%d, padding: %d, allocs: %d, failures: %d, usage: %.1f%%}",
		a.region,
		stats.Used,
		stats.Capacity,
		stats.BytesPadding,
		stats.Allocs,
		stats.Failures,
		a.Usage(),
	)
}
