package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceCmpNoopWhenDisabled(t *testing.T) {
	EnableCmpLog(false)
	TraceCmp(1, 10, 20)
	_, ok := CmpPairs()[1]
	assert.False(t, ok)
}

func TestTraceCmpRecordsWhenEnabled(t *testing.T) {
	EnableCmpLog(true)
	defer EnableCmpLog(false)

	TraceCmp(7, 111, 222)
	pairs := CmpPairs()
	assert.Equal(t, [2]uint64{111, 222}, pairs[7])
}
