// Package resource governs host resources used around the heap.
//
// The Controller manages three resource types:
//
//   - Memory: a budget for arena backing buffers (non-blocking, fail-fast)
//   - Concurrency: worker slots for fixture programs run side by side
//   - IO: a token bucket throttling heap dump writes
//
// # Memory Budget
//
// AcquireMemory is non-blocking and returns ErrMemoryLimitExceeded when the
// reservation would exceed the limit. The Controller satisfies
// arena.MemoryAcquirer, so an arena reserves its full size on creation and
// gives it back on Close:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 10,
//	})
//	a, err := arena.New(start, size, arena.WithMemoryAcquirer(rc))
//
// # Worker Slots
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # IO Rate Limiting
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
