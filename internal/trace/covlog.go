package trace

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// covLogState backs the afl_cov-style coverage report supplement from
// original_source/src/afl_cov_rt.c: in addition to the shared bitmap, a
// target can ask for a plain per-block log, used offline to build
// gcov-like line-coverage reports. Off unless EnableCoverageLog is called
// (wired to AFLRT_COV_LOG in the aflrt package), so it never changes the
// core bitmap contract spec.md §8 tests against.
type covLogState struct {
	mu  sync.Mutex
	w   *bufio.Writer
	f   *os.File
	cnt uint64
}

var covLog covLogState

// EnableCoverageLog opens path and begins appending one line per
// instrumentation hook invocation ("<seq> <cur_loc>"), flushed on every
// call: this is diagnostic tooling, not a hot path, so unbuffered-per-call
// flush favors a complete log over throughput.
func EnableCoverageLog(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: open coverage log: %w", err)
	}

	covLog.mu.Lock()
	covLog.f = f
	covLog.w = bufio.NewWriter(f)
	covLog.cnt = 0
	covLog.mu.Unlock()
	return nil
}

// logCoverage appends one record if coverage logging is enabled. No-op
// (and allocation-free on the fast path) otherwise.
func logCoverage(curLoc uint32) {
	covLog.mu.Lock()
	defer covLog.mu.Unlock()

	if covLog.w == nil {
		return
	}
	covLog.cnt++
	fmt.Fprintf(covLog.w, "%d %d\n", covLog.cnt, curLoc)
	covLog.w.Flush()
}

// CloseCoverageLog flushes and closes the coverage log file, if open.
func CloseCoverageLog() error {
	covLog.mu.Lock()
	defer covLog.mu.Unlock()

	if covLog.f == nil {
		return nil
	}
	err := covLog.w.Flush()
	cerr := covLog.f.Close()
	covLog.f = nil
	covLog.w = nil
	if err != nil {
		return err
	}
	return cerr
}
