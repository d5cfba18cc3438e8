// Package mmap provides anonymous, off-heap memory mappings.
//
// A heap arena can be backed either by an ordinary Go slice or by an
// anonymous mapping obtained here. Mapped memory lives outside the Go
// garbage collector, is zero-filled by the kernel, and is returned to the
// OS when the mapping is closed.
//
// # Usage
//
//	m, err := mmap.MapAnon(128)
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE, madvise(2) for hints
//   - Windows: VirtualAlloc/VirtualFree (Advise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure
// no goroutine touches the slice from Bytes() after Close returns.
package mmap
