package logic

import "sync/atomic"

// buttonState is the per-button debounce state.
//
// Every field except suppressed is written only by the goroutine calling
// Admit. monitored and the thresholds are fixed once the engine is built,
// so readers on other goroutines only need the atomic counter.
type buttonState struct {
	monitored   bool
	suppressing bool
	suppressed  atomic.Uint64

	// lastAccepted is the timestamp of the last admitted Up.
	lastAccepted int64
	hasAccepted  bool

	thresholdTicks  int64
	thresholdMillis uint32
}

// registry holds the state of every button, indexed by Button.
type registry [ButtonCount]buttonState

func (r *registry) get(b Button) *buttonState {
	if !b.Valid() {
		return nil
	}
	return &r[b]
}
