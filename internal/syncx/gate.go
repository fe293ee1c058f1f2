package syncx

import "sync/atomic"

const (
	gateUnclaimed int32 = iota
	gateClaimed
)

// Gate lets exactly one of many concurrent callers perform a one-shot
// action. The zero value is unclaimed and ready to use.
type Gate struct {
	state atomic.Int32
}

// TryClaim reports true to exactly one caller over the Gate's lifetime.
func (g *Gate) TryClaim() bool {
	return g.state.CompareAndSwap(gateUnclaimed, gateClaimed)
}

// Claimed reports whether some caller has already won the Gate.
func (g *Gate) Claimed() bool {
	return g.state.Load() == gateClaimed
}
