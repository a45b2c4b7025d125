//go:build unix

package forkserver

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReExecSpawner is the real Spawner: each Spawn starts a fresh copy of the
// running binary (see package doc for why re-exec stands in for fork()).
// The child inherits the parent's environment plus EnvChildMarker, stdin,
// stdout and stderr only — it never sees the control/status pipe fds,
// which is the re-exec equivalent of spec.md §4.D step 3's "child closes
// both pipe descriptors".
type ReExecSpawner struct {
	// Path is the executable to re-exec, typically resolved from
	// /proc/self/exe. Argv and Env are the arguments and environment to
	// pass; Env should already contain EnvChildMarker=1.
	Path string
	Argv []string
	Env  []string
}

func (s *ReExecSpawner) Spawn() (int, error) {
	pid, err := unix.ForkExec(s.Path, s.Argv, &unix.ProcAttr{
		Env:   s.Env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec %s: %w", s.Path, err)
	}
	return pid, nil
}

func (s *ReExecSpawner) Wait(pid int, stopReportable bool) (uint32, bool, error) {
	var ws unix.WaitStatus
	var flag int
	if stopReportable {
		flag = unix.WUNTRACED
	}

	if _, err := unix.Wait4(pid, &ws, flag, nil); err != nil {
		return 0, false, fmt.Errorf("wait4(%d): %w", pid, err)
	}

	return uint32(ws), ws.Stopped(), nil
}

func (s *ReExecSpawner) Continue(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}

func (s *ReExecSpawner) Reap(pid int) error {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	return err
}

// SelfExecPath resolves the path re-exec should use: /proc/self/exe on
// Linux (stable across argv[0] tricks, $PATH changes, relative cwd), or
// the looked-up absolute path of os.Args[0] elsewhere.
func SelfExecPath() (string, error) {
	if p, err := os.Readlink("/proc/self/exe"); err == nil {
		return p, nil
	}
	return os.Executable()
}

// NewReExecSpawner builds a ReExecSpawner for the current process: same
// path, same argv[1:], same environment plus EnvChildMarker.
func NewReExecSpawner() (*ReExecSpawner, error) {
	path, err := SelfExecPath()
	if err != nil {
		return nil, fmt.Errorf("resolve self exe: %w", err)
	}

	return &ReExecSpawner{
		Path: path,
		Argv: os.Args,
		Env:  append(append([]string{}, os.Environ()...), EnvChildMarker+"=1"),
	}, nil
}
