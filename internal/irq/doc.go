// Package irq models the interrupt-free critical section of a Cortex-M core.
//
// On target, shared allocator state is protected by masking interrupts
// (PRIMASK) for the duration of the update, so neither thread code nor an
// interrupt handler can observe a half-updated cursor. On the host, the
// same contract is a sync.Locker: Mask serializes every section and records
// the mask state so tests can assert that work ran with interrupts disabled.
//
//	var m irq.Mask
//	irq.Free(&m, func() {
//	    // interrupts are masked here
//	})
package irq
