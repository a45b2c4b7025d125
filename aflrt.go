// Package aflrt is the target-side instrumentation runtime: the library an
// instrumented program imports so a coverage-guided fuzzer can drive it
// over the forkserver protocol described in spec.md.
//
// Usage mirrors the C runtime this replaces. A target imports aflrt
// (commonly as a blank import at the top of its entry point so aflrt's
// own init() — the Go stand-in for the C runtime's highest-priority
// constructor — runs before anything else) and, if it opted into deferred
// initialisation via __AFL_DEFER_FORKSRV, calls aflrt.ManualInit() once it
// is ready.
package aflrt

import (
	"fmt"
	"os"
	"runtime"

	"github.com/xyproto/aflrt/internal/bitmap"
	"github.com/xyproto/aflrt/internal/config"
	"github.com/xyproto/aflrt/internal/forkserver"
	"github.com/xyproto/aflrt/internal/shm"
	"github.com/xyproto/aflrt/internal/trace"
)

// MapSize and MapSizePow2 mirror spec.md §3's compile-time constants.
const (
	MapSizePow2 = bitmap.MapSizePow2
	MapSize     = bitmap.MapSize
)

var cfg config.Runtime

func init() {
	f, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: aflrt: loading config: %v\n", err)
		os.Exit(1)
	}
	cfg = config.Resolve(f)

	autoInit()
}

// autoInit is spec.md §4.E's "proper initialisation routine"
// (__afl_auto_init): latch persistent mode, configure the density filter,
// and either start the forkserver now or defer to an explicit ManualInit
// call later.
func autoInit() {
	forkserver.SetEnabled(cfg.Persistent)

	if err := trace.ConfigureInstRatio(cfg.InstRatio); err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "aflrt: map_size=%d persistent=%v deferred=%v\n",
			MapSize, cfg.Persistent, cfg.DeferForksrv)
	}

	trace.EnableCmpLog(cfg.CmpLog)
	if cfg.CoverageLog != "" {
		if err := trace.EnableCoverageLog(cfg.CoverageLog); err != nil {
			fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	if cfg.MonitorSocket != "" {
		startMonitorListener(cfg.MonitorSocket)
	}

	if cfg.DeferForksrv {
		return
	}

	ManualInit()
}

var manualInitDone = newOnceFlag()

// ManualInit is __afl_manual_init: idempotent regardless of how many times
// it is called (spec.md §3, §8). The first call attaches shared memory (if
// __AFL_SHM_ID is set) and either starts the forkserver loop or — if this
// process is a re-exec'd child spawned by that loop — returns immediately
// so the caller's own code runs.
func ManualInit() {
	if !manualInitDone.trigger() {
		return
	}

	if err := shm.AttachFromEnv(cfg.ShmID); err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
		os.Exit(1)
	}

	if os.Getenv(forkserver.EnvChildMarker) != "" {
		// Re-exec'd child: the parent's Loop already wrote our pid and is
		// waiting on us. Fall through to user code, exactly as a forked
		// child returning from __afl_start_forkserver would.
		return
	}

	spawner, err := forkserver.NewReExecSpawner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
		os.Exit(1)
	}

	controlPipe := os.NewFile(uintptr(cfg.ControlFD), "aflrt-control")
	statusPipe := os.NewFile(uintptr(cfg.StatusFD), "aflrt-status")

	err = forkserver.Loop(controlPipe, statusPipe, spawner, cfg.Persistent)
	if err == forkserver.ErrStandalone {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] ERROR: %v\n", err)
		os.Exit(1)
	}
}

// PersistentLoop is __afl_persistent_loop(max_cnt): call it from inside a
// target-controlled loop that processes one input per iteration. It
// returns true to run another iteration, false when the caller should
// exit normally (a fresh re-exec'd child will service the next input).
func PersistentLoop(maxCnt uint32) bool {
	return forkserver.PersistentLoop(maxCnt)
}

// AreaPtr is __afl_area_ptr: the live bitmap, never nil.
func AreaPtr() *[MapSize]byte {
	return bitmap.Area()
}

// PrevLoc is __afl_prev_loc. It is one process-wide register rather than
// a per-thread one; see internal/bitmap's doc comment on prevLoc for why
// a real per-thread slot isn't possible here without blocking or
// allocating on every edge.
func PrevLoc() *uint32 {
	return bitmap.PrevLoc()
}

// Edge is the per-edge inline bump a code-generation pass emits at each
// basic block's entry (spec.md §4.C Variant 1).
func Edge(curLoc uint32) {
	trace.Edge(curLoc)
}

// TracePC is __sanitizer_cov_trace_pc (spec.md §4.C Variant 2): called on
// every basic block under a coarse "callback per block" instrumentation
// mode. It derives cur_loc from its own caller's return address, exactly
// as the C runtime derives it from __builtin_return_address(0).
func TracePC() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	trace.TracePC(uintptr(pc))
}

// TracePCIndir is __sanitizer_cov_trace_pc_indir, the indirect-call
// variant. dummy carries no information the runtime needs; it exists to
// mirror the C signature's second argument.
func TracePCIndir(dummy uintptr) {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	trace.TracePCIndir(uintptr(pc), dummy)
}

// ModuleInit is __sanitizer_cov_module_init: a weakly defined hook some
// compiler versions call once per module. Safe to call zero or more
// times.
func ModuleInit() {
	trace.ModuleInit()
}
