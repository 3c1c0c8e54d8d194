// Package clock provides the timestamps the debounce engine compares.
//
// A Source turns an input event into an integer timestamp. Coarse sources
// reuse the millisecond time attached to the event by the kernel; the
// high-resolution source samples a monotonic counter when the event is
// dispatched. TicksPerMilli converts millisecond thresholds into the
// source's unit once, before any event is processed.
package clock

import (
	"errors"
	"fmt"
)

// Mode selects how timestamps are produced.
type Mode int

const (
	ModeCoarse Mode = iota
	ModeHighRes
)

func (m Mode) String() string {
	switch m {
	case ModeCoarse:
		return "coarse"
	case ModeHighRes:
		return "high-resolution"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrHighResUnavailable is returned by New when the high-resolution counter
// cannot be used. The returned Source is still usable.
var ErrHighResUnavailable = errors.New("high-resolution counter unavailable")

// Source produces engine timestamps.
type Source interface {
	// Now returns the timestamp for an event that the kernel stamped at
	// eventMillis. Successive calls never decrease.
	Now(eventMillis int64) int64

	// TicksPerMilli is the number of timestamp units per millisecond.
	TicksPerMilli() int64

	// Mode reports which mode the source implements.
	Mode() Mode
}

// New returns a Source for mode. If the high-resolution counter cannot be
// queried it returns a Coarse source together with an error wrapping
// ErrHighResUnavailable; callers should report it and carry on.
func New(mode Mode) (Source, error) {
	if mode != ModeHighRes {
		return Coarse{}, nil
	}
	hr, err := NewHighRes()
	if err != nil {
		return Coarse{}, fmt.Errorf("%w: %v", ErrHighResUnavailable, err)
	}
	return hr, nil
}

// Coarse uses the event's own millisecond timestamp.
type Coarse struct{}

func (Coarse) Now(eventMillis int64) int64 { return eventMillis }

func (Coarse) TicksPerMilli() int64 { return 1 }

func (Coarse) Mode() Mode { return ModeCoarse }

// TicksPerMilli converts a counter frequency into ticks per millisecond.
// The sub-millisecond remainder is discarded.
func TicksPerMilli(countsPerSecond int64) int64 {
	return countsPerSecond / 1000
}
