//go:build !unix

package forkserver

import "fmt"

// ReExecSpawner is unavailable off unix: spec.md's fork/wait/signal
// protocol is inherently POSIX (original_source never targeted Windows
// either). Callers on other platforms should skip Loop entirely, the same
// way a standalone, non-forkserver execution would.
type ReExecSpawner struct{}

func (s *ReExecSpawner) Spawn() (int, error)                  { return 0, errUnsupported }
func (s *ReExecSpawner) Wait(int, bool) (uint32, bool, error) { return 0, false, errUnsupported }
func (s *ReExecSpawner) Continue(int) error                   { return errUnsupported }
func (s *ReExecSpawner) Reap(int) error                       { return errUnsupported }
func NewReExecSpawner() (*ReExecSpawner, error)               { return nil, errUnsupported }

var errUnsupported = fmt.Errorf("forkserver: unsupported on this platform")
