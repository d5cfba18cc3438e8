// Package fs abstracts the file system used for heap images.
//
//   - [LocalFS]: the os package
//   - [FaultyFS]: a wrapper that injects write, sync and close failures
//
// Heap images are written with [WriteFile], which writes a temporary file,
// syncs it and renames it into place, so a failed dump never leaves a
// truncated image under the requested name.
//
// Operations take no context.Context: local file operations cannot be
// interrupted at the syscall level. Throttling happens in the writer passed
// to WriteFile's callback.
package fs
