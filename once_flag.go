package aflrt

import "sync/atomic"

// onceFlag is a boolean latch: trigger reports true exactly once, on its
// first call, across any number of goroutines. Used for ManualInit's
// "guard with a boolean that flips after the first call" requirement
// (spec.md §4.E) in a form that is safe to race against concurrently
// (spec.md's threading model never promises ManualInit is called from a
// single goroutine).
type onceFlag struct {
	done atomic.Bool
}

func newOnceFlag() *onceFlag {
	return &onceFlag{}
}

// trigger returns true the first time it is called and false on every
// subsequent call.
func (f *onceFlag) trigger() bool {
	return f.done.CompareAndSwap(false, true)
}
