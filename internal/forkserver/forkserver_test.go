package forkserver

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpawner lets the protocol state machine in Loop be tested without
// touching a real process.
type fakeSpawner struct {
	nextPID   int
	spawned   []int
	waitFn    func(pid int, stopReportable bool) (uint32, bool, error)
	continued []int
	reaped    []int
}

func (f *fakeSpawner) Spawn() (int, error) {
	f.nextPID++
	f.spawned = append(f.spawned, f.nextPID)
	return f.nextPID, nil
}

func (f *fakeSpawner) Wait(pid int, stopReportable bool) (uint32, bool, error) {
	return f.waitFn(pid, stopReportable)
}

func (f *fakeSpawner) Continue(pid int) error {
	f.continued = append(f.continued, pid)
	return nil
}

func (f *fakeSpawner) Reap(pid int) error {
	f.reaped = append(f.reaped, pid)
	return nil
}

func writeMsg(t *testing.T, w io.Writer, v uint32) {
	t.Helper()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	require.NoError(t, err)
}

func readMsg(t *testing.T, r io.Reader) uint32 {
	t.Helper()
	var buf [4]byte
	_, err := io.ReadFull(r, buf[:])
	require.NoError(t, err)
	return binary.LittleEndian.Uint32(buf[:])
}

func TestLoopStandaloneWhenHandshakeWriteFails(t *testing.T) {
	pr, pw := io.Pipe()
	pw.Close() // any write to pw now fails

	err := Loop(pr, pw, &fakeSpawner{}, false)
	assert.ErrorIs(t, err, ErrStandalone)
}

func TestLoopOneForkRound(t *testing.T) {
	controlR, controlW := io.Pipe()
	statusR, statusW := io.Pipe()

	spawner := &fakeSpawner{
		waitFn: func(pid int, stopReportable bool) (uint32, bool, error) {
			return 0, false, nil // exited with status 0
		},
	}

	done := make(chan error, 1)
	go func() { done <- Loop(controlR, statusW, spawner, false) }()

	// handshake
	var hs [4]byte
	_, err := io.ReadFull(statusR, hs[:])
	require.NoError(t, err)

	writeMsg(t, controlW, 0) // was_killed = 0

	pid := readMsg(t, statusR)
	assert.Equal(t, uint32(1), pid)

	status := readMsg(t, statusR)
	assert.Equal(t, uint32(0), status)

	assert.Equal(t, []int{1}, spawner.spawned)

	controlW.Close()
	err = <-done
	assert.Error(t, err) // the next control-pipe read fails once we close it
}

func TestLoopPersistentStopThenResume(t *testing.T) {
	controlR, controlW := io.Pipe()
	statusR, statusW := io.Pipe()

	calls := 0
	spawner := &fakeSpawner{
		waitFn: func(pid int, stopReportable bool) (uint32, bool, error) {
			calls++
			if calls == 1 {
				return 0x7f, true, nil // WIFSTOPPED-ish
			}
			return 0, false, nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- Loop(controlR, statusW, spawner, true) }()

	var hs [4]byte
	io.ReadFull(statusR, hs[:])

	writeMsg(t, controlW, 0)
	_ = readMsg(t, statusR) // pid
	st1 := readMsg(t, statusR)
	assert.Equal(t, uint32(0x7f), st1)

	// next iteration: was_killed=0 -> should Continue(), not Spawn() again
	writeMsg(t, controlW, 0)
	_ = readMsg(t, statusR) // pid (same pid, resumed)
	st2 := readMsg(t, statusR)
	assert.Equal(t, uint32(0), st2)

	assert.Equal(t, []int{1}, spawner.spawned, "persistent child must not be re-spawned on resume")
	assert.Equal(t, []int{1}, spawner.continued)

	controlW.Close()
	<-done
}

func TestLoopKilledPersistentChildIsReaped(t *testing.T) {
	controlR, controlW := io.Pipe()
	statusR, statusW := io.Pipe()

	calls := 0
	spawner := &fakeSpawner{
		waitFn: func(pid int, stopReportable bool) (uint32, bool, error) {
			calls++
			if calls == 1 {
				return 0x7f, true, nil
			}
			return 0, false, nil // the respawned child exits normally
		},
	}

	done := make(chan error, 1)
	go func() { done <- Loop(controlR, statusW, spawner, true) }()

	var hs [4]byte
	io.ReadFull(statusR, hs[:])

	writeMsg(t, controlW, 0)
	_ = readMsg(t, statusR)
	_ = readMsg(t, statusR)

	// fuzzer externally killed the stopped child, now reports was_killed=1
	writeMsg(t, controlW, 1)

	// loop should reap pid 1, then spawn a fresh child (pid 2)
	newPID := readMsg(t, statusR)
	assert.Equal(t, uint32(2), newPID)
	newStatus := readMsg(t, statusR)
	assert.Equal(t, uint32(0), newStatus)
	assert.Equal(t, []int{1}, spawner.reaped)
	assert.Equal(t, []int{1, 2}, spawner.spawned)

	controlW.Close()
	<-done
}
