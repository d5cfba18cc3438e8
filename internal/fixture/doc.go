// Package fixture contains the heap fixture programs and a runner for them.
//
// Each program is the host-side counterpart of a small firmware image: it
// initializes a heap, uses it the way the firmware would and prints what the
// firmware would send over semihosting. Programs run against their own Heap,
// so a Runner can execute several at once.
//
// Outcomes:
//   - Passed: the program completed and its checks held
//   - Halted: the OOM handler stopped the program (the oom fixture expects this)
//   - Failed: the program returned an error or panicked
package fixture
