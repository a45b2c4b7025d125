package trace

import "sync"

// cmpLogState backs the instrumented_cmp supplement from
// original_source/afl-sys/afl-2.10b/experimental/instrumented_cmp/instrumented_cmp.c:
// the experimental comparison-capture pass that records operand pairs of
// instrumented comparisons, later used for input-to-state tracking
// ("RedQueen"-style mutation hints). Off by default; enabled via
// AFLRT_CMPLOG (wired in the aflrt package) so the core bitmap contract
// stays exactly as spec.md §8 tests it.
type cmpLogState struct {
	mu      sync.Mutex
	enabled bool
	pairs   map[uint32][2]uint64
}

var cmpLog = cmpLogState{pairs: make(map[uint32][2]uint64)}

// EnableCmpLog turns comparison capture on or off.
func EnableCmpLog(enabled bool) {
	cmpLog.mu.Lock()
	cmpLog.enabled = enabled
	cmpLog.mu.Unlock()
}

// TraceCmp records the operand pair (a, b) observed at call-site id. A
// code-generation pass instrumenting comparisons (==, <, etc.) would call
// this alongside the edge/trace-pc hook at each comparison site. Last
// write for a given id wins; this is a hint table for a mutator, not an
// audit log.
func TraceCmp(id uint32, a, b uint64) {
	cmpLog.mu.Lock()
	defer cmpLog.mu.Unlock()

	if !cmpLog.enabled {
		return
	}
	cmpLog.pairs[id] = [2]uint64{a, b}
}

// CmpPairs returns a snapshot of all recorded comparison operand pairs,
// keyed by call-site id. Read-only; used by tests.
func CmpPairs() map[uint32][2]uint64 {
	cmpLog.mu.Lock()
	defer cmpLog.mu.Unlock()

	out := make(map[uint32][2]uint64, len(cmpLog.pairs))
	for k, v := range cmpLog.pairs {
		out[k] = v
	}
	return out
}
