// Package trace implements the two instrumentation-hook variants of
// spec.md §4.C: the per-edge inline bump (Edge) that a code-generation
// pass would emit directly, and the return-address hook variant
// (TracePC/TracePCIndir) used when only a coarse "callback per basic
// block" mode is available.
package trace

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/xyproto/aflrt/internal/bitmap"
)

// Edge is Variant 1 from spec.md §4.C: a compiler-assigned random block id
// bumps the slot (curLoc XOR prevLoc) mod MapSize, then prevLoc becomes
// curLoc >> 1. The bitmap bump and prevLoc update take no lock and do not
// allocate. Each call also goes through logCoverage, which takes covLog's
// mutex on every call, and, while a coverage log is enabled, formats and
// writes one record to the log file; so Edge is not lock-free.
func Edge(curLoc uint32) {
	p := bitmap.PrevLoc()
	*p = bitmap.Bump(*p, curLoc)
	logCoverage(curLoc)
}

// instRatioScaled is Variant 2's density filter threshold, expressed in the
// same 12-bit-or-MapSize-capped space as curLoc. Default is
// min(4096, MapSize); AFL_INST_RATIO scales it down to a percentage. At the
// default (no AFL_INST_RATIO set), curLocFromReturnAddress can never
// produce a value above mask = min(4095, MapSize-1), so the filter never
// rejects a block until AFL_INST_RATIO actually requests less than 100% —
// matching original_source's "100 means trace every edge" default, not an
// off-by-one between the mask and this threshold.
var instRatioScaled atomic.Uint32

func init() {
	instRatioScaled.Store(uint32(min(4096, int(bitmap.MapSize))))
}

// ConfigureInstRatio implements spec.md §4.E step 2 and the
// __sanitizer_cov_module_init contract from §4.C: read AFL_INST_RATIO (a
// decimal 1-100 percentage). Absent is a no-op; present-but-invalid is
// fatal, matching original_source's afl-llvm-rt.o.c
// __sanitizer_cov_module_init diagnostic+abort.
func ConfigureInstRatio(raw string) error {
	if raw == "" {
		return nil
	}

	ratio, err := strconv.Atoi(raw)
	if err != nil || ratio < 1 || ratio > 100 {
		return fmt.Errorf("invalid AFL_INST_RATIO (must be 1-100): %q", raw)
	}

	base := min(4096, int(bitmap.MapSize))
	instRatioScaled.Store(uint32(ratio * base / 100))
	return nil
}

// curLocFromReturnAddress synthesises the Variant 2 block identifier from
// the low 12 bits of a return address, stable under ASLR per spec.md §4.C.
func curLocFromReturnAddress(retAddr uintptr) uint32 {
	mask := uint32(min(4095, bitmap.MapSize-1))
	return uint32(retAddr) & mask
}

// bumpReturnAddressHook is the shared body of TracePC and TracePCIndir:
// apply the density filter, then bump and update prevLoc with the
// MapSizePow2-aware spread spec.md §4.C documents (preserved verbatim,
// including the >12 / <=12 split that intentionally collides with
// Variant 1's convention at MapSizePow2<=12 — see spec.md §9 open
// questions, which say not to "fix" this).
func bumpReturnAddressHook(retAddr uintptr) {
	cur := curLocFromReturnAddress(retAddr)
	if cur > instRatioScaled.Load() {
		return
	}

	p := bitmap.PrevLoc()
	prev := *p

	a := bitmap.Area()
	a[(cur^prev)%bitmap.MapSize]++

	if bitmap.MapSizePow2 > 12 {
		*p = cur << (bitmap.MapSizePow2 - 12)
	} else {
		*p = cur >> 1
	}

	logCoverage(cur)
}

// TracePC is __sanitizer_cov_trace_pc: called on every basic block when the
// target is built with -fsanitize-coverage=trace-pc (or this runtime's
// equivalent instrumentation mode). retAddr is the hook's own return
// address, passed explicitly because Go code cannot rely on
// __builtin_return_address(0) the way the C runtime does; a
// code-generation pass wiring this symbol supplies its caller's PC.
func TracePC(retAddr uintptr) {
	bumpReturnAddressHook(retAddr)
}

// TracePCIndir is __sanitizer_cov_trace_pc_indir, used for indirect-call
// edges. Same contract and behaviour as TracePC; the compiler pass
// distinguishes the two call sites, the runtime does not need to.
func TracePCIndir(retAddr uintptr, _ uintptr) {
	bumpReturnAddressHook(retAddr)
}

// ModuleInit is __sanitizer_cov_module_init: a weakly defined entry point
// some compiler versions emit once per module. It reads AFL_INST_RATIO
// from the process environment directly (mirroring the C runtime, which
// has no other way to receive it) and is safe to call zero or more times.
func ModuleInit() {
	if err := ConfigureInstRatio(os.Getenv("AFL_INST_RATIO")); err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
		os.Exit(1)
	}
}
