// Package cortexheap provides a bump-pointer heap for Cortex-M style targets.
//
// A Heap owns a fixed address range, by default the first 128 bytes of SRAM
// at 0x20000000, and a cursor that only moves forward. Alloc rounds the
// cursor up to the requested alignment and hands out the next block;
// Dealloc never reclaims anything.
//
// # Quick Start
//
//	h, err := cortexheap.New(
//	    cortexheap.WithHeapStart(0x20000400),
//	    cortexheap.WithHeapSize(1024),
//	)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	addr, err := h.Alloc(ctx, cortexheap.Layout{Size: 12, Align: 4})
//
// # Out of Memory
//
// A request that does not fit leaves the heap untouched and invokes the OOM
// handler. The default handler, Halt, panics with a *HaltError: like a
// bare-metal alloc error handler, the program does not continue. Use
// WithOOMHandler(cortexheap.ReturnError) to get the error back instead:
//
//	_, err := h.Alloc(ctx, layout)
//	if errors.Is(err, cortexheap.ErrOutOfMemory) {
//	    var oom *cortexheap.OOMError
//	    errors.As(err, &oom) // requested layout, cursor, bytes remaining
//	}
//
// # Concurrency
//
// The cursor is advanced with a lock-free compare-and-swap. To model the
// interrupt-free critical section used on target, pass an InterruptMask (or
// any other sync.Locker):
//
//	var mask cortexheap.InterruptMask
//	h, _ := cortexheap.New(cortexheap.WithCriticalSection(&mask))
//
// # Inspection
//
// Stats, Occupancy (with WithTracking) and Dump expose what the heap holds.
// Dump writes a compressed heap image (LZ4 or ZSTD) readable with the
// heapfixture command.
package cortexheap
