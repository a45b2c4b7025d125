// Package bitmap owns the coverage map pointer and the previous-edge
// location register that the instrumentation hot path reads and writes.
package bitmap

import (
	"sync/atomic"
)

// MapSizePow2 is the compile-time exponent behind MapSize. The canonical
// value is 16 (64 KiB), matching original_source/src/config.h.
const MapSizePow2 = 16

// MapSize is the number of edge-hit counters in the bitmap.
const MapSize = 1 << MapSizePow2

// fallback is the in-binary bitmap used before (or absent) shared-memory
// attach. It lives in .bss-equivalent storage: a zero-initialized package
// array is never written to the binary's data section. area points at it
// from this package's init onward; Go runs that init before the init of
// any package importing bitmap, so every caller of Area or Bump sees a
// valid, zeroed map.
var fallback [MapSize]byte

var area atomic.Pointer[[MapSize]byte]

func init() {
	area.Store(&fallback)
}

// Area returns the live bitmap. Never nil; before a successful shared-memory
// attach it is the fallback array.
func Area() *[MapSize]byte {
	return area.Load()
}

// SetArea replaces the live bitmap pointer, e.g. after shm.Attach succeeds.
func SetArea(p *[MapSize]byte) {
	area.Store(p)
}

// Bump records one hit on the edge (prevLoc, curLoc) and returns the updated
// prevLoc a caller should store back (curLoc >> 1, per spec.md §3's
// direction-sensitivity rule). The live map pointer is read with an atomic
// load, but the counter increment itself is a plain, non-atomic byte add:
// concurrent bumps from different goroutines may race and undercount, which only loses coverage, never
// fabricates it — an intentional trade for a lock-free hot path.
func Bump(prevLoc, curLoc uint32) (nextPrevLoc uint32) {
	idx := (curLoc ^ prevLoc) % MapSize
	a := area.Load()
	a[idx]++
	return curLoc >> 1
}

// prevLoc is the previous-edge-location register Edge and the return-
// address hooks read and update on every single call. spec.md §4.A calls
// for this to be per-thread; Go exposes no OS-thread-local storage a
// library can hook into, and the only ways to fake one — walking
// runtime.Stack's goroutine header, or keying a map and taking a mutex —
// both block and allocate on every edge, which spec.md §5 and §9 forbid
// on this exact path ("neither instrumentation variant performs any
// blocking operation", "do not introduce atomics on the hot path"). This
// package takes the same trade Bump already takes: one process-wide
// register, read and written with no synchronisation at all. Concurrent
// goroutines racing on it can interleave each other's edge histories,
// which degrades coverage precision under heavy goroutine concurrency but
// never blocks, allocates, or panics — a documented hard deviation from
// strict per-thread scoping, not an oversight.
var prevLoc uint32

// PrevLoc returns the previous-edge-location register, starting at zero
// per spec.md §3's "prev_loc starts at 0" invariant.
func PrevLoc() *uint32 {
	return &prevLoc
}

// ResetForTest clears the bitmap and the prevLoc register. Only used by
// tests that need a clean map between deterministic replays (see spec.md
// §8 "round-trip / idempotence").
func ResetForTest() {
	a := area.Load()
	for i := range a {
		a[i] = 0
	}
	prevLoc = 0
}
