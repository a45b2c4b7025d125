package forkserver

import "sync"

// persistentState backs PersistentLoop, spec.md §4.D's
// "__afl_persistent_loop" entry point: the first call primes a cycle
// counter from the caller-supplied maximum and returns true; subsequent
// calls decrement it and stop the process (via selfStop) so the
// forkserver parent observes a stop instead of an exit, returning true
// once resumed; once the counter is exhausted it returns false so the
// caller exits normally and a fresh child is spawned next round.
type persistentState struct {
	mu        sync.Mutex
	enabled   bool
	firstPass bool
	cycleCnt  uint32
}

var persistent = &persistentState{firstPass: true}

// SetEnabled latches whether persistent mode was requested
// (__AFL_PERSISTENT, spec.md §4.E step 1).
func SetEnabled(enabled bool) {
	persistent.mu.Lock()
	persistent.enabled = enabled
	persistent.mu.Unlock()
}

// Enabled reports the latched persistent-mode flag.
func Enabled() bool {
	persistent.mu.Lock()
	defer persistent.mu.Unlock()
	return persistent.enabled
}

// selfStop raises SIGSTOP on the calling process; overridden in tests and
// bound to the real syscall in persistent_unix.go.
var selfStop = func() error { return nil }

// PersistentLoop implements __afl_persistent_loop(max). The first call in
// a process primes the cycle counter and returns true without stopping.
// Each later call either stops the process and returns true (more
// iterations remain) or returns false (caller should exit normally).
func PersistentLoop(maxCnt uint32) bool {
	persistent.mu.Lock()

	if persistent.firstPass {
		persistent.cycleCnt = maxCnt
		persistent.firstPass = false
		persistent.mu.Unlock()
		return true
	}

	if persistent.enabled && persistent.cycleCnt > 0 {
		persistent.cycleCnt--
		if persistent.cycleCnt == 0 {
			persistent.mu.Unlock()
			return false
		}
		persistent.mu.Unlock()
		_ = selfStop()
		return true
	}

	persistent.mu.Unlock()
	return false
}

// ResetForTest restores first-call semantics; used only by tests that
// need multiple independent persistent-loop sequences in one process.
func ResetForTest() {
	persistent.mu.Lock()
	persistent.firstPass = true
	persistent.cycleCnt = 0
	persistent.mu.Unlock()
}
