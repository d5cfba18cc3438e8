package irq

import (
	"sync"
	"sync/atomic"
)

// Mask is an interrupt mask usable as a critical section.
// The zero value is unmasked and ready to use.
type Mask struct {
	mu       sync.Mutex
	primask  atomic.Bool
	sections atomic.Uint64
}

var _ sync.Locker = (*Mask)(nil)

// Lock masks interrupts, blocking until no other section is active.
func (m *Mask) Lock() {
	m.mu.Lock()
	m.primask.Store(true)
	m.sections.Add(1)
}

// Unlock restores the interrupt state.
func (m *Mask) Unlock() {
	m.primask.Store(false)
	m.mu.Unlock()
}

// Masked reports whether a critical section is currently active.
func (m *Mask) Masked() bool {
	return m.primask.Load()
}

// Sections returns the number of critical sections entered so far.
func (m *Mask) Sections() uint64 {
	return m.sections.Load()
}

// Free runs fn with l held. A nil locker runs fn directly.
func Free(l sync.Locker, fn func()) {
	if l == nil {
		fn()
		return
	}
	l.Lock()
	defer l.Unlock()
	fn()
}
