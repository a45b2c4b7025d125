// Package forkserver implements spec.md §4.D's two-pipe forkserver
// protocol and §4.D's persistent-mode entry point.
//
// Go has no fork() safe to call from a multi-threaded runtime (the Go
// scheduler itself runs on several OS threads, and a forked child only
// keeps the calling thread — every other goroutine simply vanishes). So
// where the original C runtime calls fork() and lets the child fall
// straight through into user code, this package re-execs the running
// binary instead: ReExecSpawner.Spawn starts a fresh copy of the same
// program, with the same argv and environment plus one sentinel
// variable (EnvChildMarker) that tells that fresh process's own call to
// aflrt.ManualInit to skip the forkserver loop and go straight to user code — the
// same outcome spec.md §4.D's "child returns to user code" describes,
// reached by re-exec instead of fork. See DESIGN.md for the REDESIGN
// entry.
package forkserver

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Canonical pipe fd numbers from spec.md §6.
const (
	DefaultControlFD = 198 // fuzzer -> runtime
	DefaultStatusFD  = 199 // runtime -> fuzzer
)

// EnvChildMarker is set in a re-exec'd child's environment so its own
// aflrt.ManualInit call knows to skip straight past the forkserver loop.
const EnvChildMarker = "__AFLRT_CHILD"

// childState models the state machine in spec.md §4.D:
//
//	None    -> (fork)                  -> Running
//	Running -> (wait: exited)          -> None
//	Running -> (wait: stopped)         -> Stopped   (persistent mode only)
//	Stopped -> (was_killed flag)       -> None       (reaped)
//	Stopped -> (normal iteration)      -> Running    (SIGCONT)
type childState int

const (
	stateNone childState = iota
	stateRunning
	stateStopped
)

// Spawner abstracts "start one fresh instance of the instrumented
// program" so the protocol loop in Loop is testable without actually
// re-executing a binary (see forkserver_test.go).
type Spawner interface {
	// Spawn starts a new child and returns its pid.
	Spawn() (pid int, err error)
	// Wait blocks for the child identified by pid. stopReportable
	// requests WUNTRACED-style semantics (report SIGSTOP as well as
	// exit) when persistent mode is enabled. status is the raw wait(2)
	// status word, matching the C ABI spec.md §4.D relays verbatim.
	Wait(pid int, stopReportable bool) (status uint32, stopped bool, err error)
	// Continue resumes a stopped child with SIGCONT.
	Continue(pid int) error
	// Reap performs a blocking, non-WUNTRACED wait on an already-stopped
	// child the fuzzer killed out of band.
	Reap(pid int) error
}

// Loop is the controller-side state machine of spec.md §4.D. pipeIn is the
// control pipe (fuzzer -> runtime), pipeOut is the status pipe (runtime ->
// fuzzer). persistent enables WUNTRACED wait semantics and the
// stopped-child resume path.
//
// Handshake: Loop first writes 4 arbitrary bytes to pipeOut. If that write
// fails, the fuzzer isn't there — Loop returns ErrStandalone immediately
// without reading anything, so the caller falls through to user code and
// an instrumented binary stays directly runnable.
//
// Any protocol violation (short read/write, spawn or wait failure) is
// fatal per spec.md §7: Loop returns a non-nil error other than
// ErrStandalone, and the caller MUST treat that as "exit status 1,
// immediately, no destructors" — Loop itself never calls os.Exit so it
// stays unit-testable, but it never returns control to user code on that
// path either.
func Loop(pipeIn io.Reader, pipeOut io.Writer, spawner Spawner, persistent bool) error {
	if _, err := pipeOut.Write([]byte{0, 0, 0, 0}); err != nil {
		return ErrStandalone
	}

	state := stateNone
	var pid int

	for {
		wasKilled, err := readUint32(pipeIn)
		if err != nil {
			return fmt.Errorf("forkserver: control pipe read: %w", err)
		}

		if state == stateStopped && wasKilled != 0 {
			if err := spawner.Reap(pid); err != nil {
				return fmt.Errorf("forkserver: reap stopped child: %w", err)
			}
			state = stateNone
		}

		if state == stateNone {
			pid, err = spawner.Spawn()
			if err != nil {
				return fmt.Errorf("forkserver: spawn: %w", err)
			}
			state = stateRunning
		} else if state == stateStopped {
			if err := spawner.Continue(pid); err != nil {
				return fmt.Errorf("forkserver: continue stopped child: %w", err)
			}
			state = stateRunning
		}

		if err := writeUint32(pipeOut, uint32(pid)); err != nil {
			return fmt.Errorf("forkserver: status pipe pid write: %w", err)
		}

		status, stopped, err := spawner.Wait(pid, persistent)
		if err != nil {
			return fmt.Errorf("forkserver: wait: %w", err)
		}

		if stopped {
			state = stateStopped
		} else {
			state = stateNone
		}

		if err := writeUint32(pipeOut, status); err != nil {
			return fmt.Errorf("forkserver: status pipe status write: %w", err)
		}
	}
}

// ErrStandalone is returned by Loop when the status-pipe handshake write
// fails, meaning the binary was launched outside the fuzzer. Callers
// should treat this as "fall through to user code", never as fatal.
var ErrStandalone = fmt.Errorf("forkserver: no fuzzer attached (standalone execution)")

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	n, err := w.Write(buf[:])
	if err != nil {
		return err
	}
	if n != 4 {
		return fmt.Errorf("short write: wrote %d of 4 bytes", n)
	}
	return nil
}
