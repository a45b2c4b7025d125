// Command aflrt-harness is a minimal example of a program instrumented
// with aflrt: it imports the runtime, optionally defers initialisation,
// and processes one input per forkserver iteration (or, in persistent
// mode, many inputs in one process). It exists to exercise the runtime
// end-to-end and to show the calling convention a code-generation pass
// would target.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/xyproto/aflrt"
)

// A handful of fabricated block ids standing in for what a real
// instrumentation pass would assign at compile time.
const (
	blockStart uint32 = 0x0100
	blockEven  uint32 = 0x0200
	blockOdd   uint32 = 0x0300
	blockEnd   uint32 = 0x0400
)

func main() {
	persistentMax := flag.Uint("persistent-max", 0, "run up to N inputs per process via aflrt.PersistentLoop")
	flag.Parse()

	if os.Getenv("__AFL_DEFER_FORKSRV") != "" {
		aflrt.ManualInit()
	}

	if *persistentMax > 0 {
		for aflrt.PersistentLoop(uint32(*persistentMax)) {
			runOnce()
		}
		return
	}

	runOnce()
}

// runOnce consumes stdin and bumps a few synthetic edges, standing in for
// the real, compiler-instrumented control flow of a fuzzed program.
func runOnce() {
	aflrt.Edge(blockStart)

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "aflrt-harness: read stdin:", err)
		os.Exit(1)
	}

	for _, b := range data {
		if b%2 == 0 {
			aflrt.Edge(blockEven)
		} else {
			aflrt.Edge(blockOdd)
		}
	}

	aflrt.Edge(blockEnd)
}
