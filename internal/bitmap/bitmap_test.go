package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaNeverNil(t *testing.T) {
	require.NotNil(t, Area())
}

func TestBumpWrapsAndIsBytewiseSuccessor(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	idx := (uint32(0x10) ^ uint32(0)) % MapSize
	Area()[idx] = 0xFF

	_ = Bump(0, 0x10)
	assert.Equal(t, byte(0x00), Area()[idx], "byte must wrap on overflow like the C u8 counter")
}

func TestBumpReturnsShiftedPrevLoc(t *testing.T) {
	next := Bump(0, 0x100)
	assert.Equal(t, uint32(0x100>>1), next)
}

func TestEdgeDirectionSensitivity(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	const a, b = uint32(0x100), uint32(0x200)

	// A -> B
	prev := uint32(0)
	prev = Bump(prev, a)
	idxAB := (a ^ 0) % MapSize
	prev = Bump(prev, b)
	idxAB2 := (b ^ (a >> 1)) % MapSize

	ResetForTest()

	// B -> A
	prev = uint32(0)
	prev = Bump(prev, b)
	idxBA := (b ^ 0) % MapSize
	prev = Bump(prev, a)
	idxBA2 := (a ^ (b >> 1)) % MapSize

	_ = prev
	assert.NotEqual(t, idxAB2, idxBA2, "A->B and B->A must hash to disjoint slots")
	assert.NotEqual(t, idxAB, idxBA)
}

func TestPrevLocStartsAtZero(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	assert.Equal(t, uint32(0), *PrevLoc())
}

func TestPrevLocIsProcessWideAndLockFree(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	// PrevLoc is a single unsynchronised register, not a per-goroutine
	// slot (see bitmap.go's doc comment on prevLoc for why): any
	// goroutine's write is visible to any other goroutine's read.
	p := PrevLoc()
	*p = 42

	done := make(chan uint32)
	go func() {
		done <- *PrevLoc()
	}()

	assert.Equal(t, uint32(42), <-done, "prevLoc is one process-wide register, shared across goroutines")
}
