package cortexheap

import (
	"sync"

	"github.com/hupe1980/cortexheap/internal/irq"
	"github.com/hupe1980/cortexheap/internal/memmap"
	"github.com/hupe1980/cortexheap/internal/resource"
)

// ResourceConfig holds host resource limits; see WithResourceLimits.
type ResourceConfig = resource.Config

// InterruptMask models PRIMASK as a sync.Locker for WithCriticalSection.
// The zero value is unmasked and ready to use.
type InterruptMask = irq.Mask

type options struct {
	start          Addr
	size           uint32
	checkPlacement bool
	criticalSect   sync.Locker
	anonymous      bool
	tracking       bool
	rc             *resource.Controller
	logger         *Logger
	metrics        MetricsCollector
	oomHandler     OOMHandler
}

func defaultOptions() options {
	return options{
		start:          Addr(memmap.DefaultHeapStart),
		size:           memmap.DefaultHeapSize,
		checkPlacement: true,
		logger:         NoopLogger(),
		metrics:        NoopMetricsCollector{},
		oomHandler:     Halt,
	}
}

// Option configures a Heap.
type Option func(*options)

// WithHeapStart sets the first heap address (the linker's heap start).
// Default: 0x20000000.
func WithHeapStart(start Addr) Option {
	return func(o *options) {
		o.start = start
	}
}

// WithHeapSize sets the heap size in bytes. Default: 128.
func WithHeapSize(size uint32) Option {
	return func(o *options) {
		o.size = size
	}
}

// WithoutPlacementCheck allows heaps outside SRAM and external RAM.
//
// Useful when modelling parts with non-standard memory maps.
func WithoutPlacementCheck() Option {
	return func(o *options) {
		o.checkPlacement = false
	}
}

// WithCriticalSection serializes every cursor update through l.
//
// Pass an *InterruptMask to model interrupt masking. Without this
// option the cursor is advanced with a lock-free compare-and-swap.
func WithCriticalSection(l sync.Locker) Option {
	return func(o *options) {
		o.criticalSect = l
	}
}

// WithAnonymousMapping backs the heap with off-heap anonymous memory
// instead of a Go slice.
func WithAnonymousMapping() Option {
	return func(o *options) {
		o.anonymous = true
	}
}

// WithTracking records allocated bytes so Occupancy can report them.
func WithTracking() Option {
	return func(o *options) {
		o.tracking = true
	}
}

// WithResourceLimits creates a private resource controller from cfg.
// The heap reserves its size from the memory budget and throttles dumps
// with the IO limit.
func WithResourceLimits(cfg ResourceConfig) Option {
	return func(o *options) {
		o.rc = resource.NewController(cfg)
	}
}

// WithResourceController shares an existing controller between heaps.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithOOMHandler sets the handler invoked when an allocation runs out of memory.
// If nil is passed, Halt is used.
func WithOOMHandler(h OOMHandler) Option {
	return func(o *options) {
		if h == nil {
			h = Halt
		}
		o.oomHandler = h
	}
}
