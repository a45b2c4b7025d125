package forkserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersistentLoopFirstCallPrimesAndReturnsTrue(t *testing.T) {
	ResetForTest()
	SetEnabled(true)
	defer SetEnabled(false)

	assert.True(t, PersistentLoop(3))
}

func TestPersistentLoopStopsThenExhausts(t *testing.T) {
	ResetForTest()
	SetEnabled(true)
	defer SetEnabled(false)

	stops := 0
	selfStop = func() error { stops++; return nil }
	defer func() { selfStop = func() error { return nil } }()

	assert.True(t, PersistentLoop(3)) // first_pass: primes cycle_cnt=3
	assert.True(t, PersistentLoop(3)) // cycle_cnt 3->2, stop, true
	assert.True(t, PersistentLoop(3)) // cycle_cnt 2->1, stop, true
	assert.False(t, PersistentLoop(3)) // cycle_cnt 1->0, no stop, false

	assert.Equal(t, 2, stops)
}

func TestPersistentLoopDisabledNeverStops(t *testing.T) {
	ResetForTest()
	SetEnabled(false)

	stops := 0
	selfStop = func() error { stops++; return nil }
	defer func() { selfStop = func() error { return nil } }()

	assert.True(t, PersistentLoop(5)) // primes
	assert.False(t, PersistentLoop(5))
	assert.Equal(t, 0, stops)
}
