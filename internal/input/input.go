// Package input connects the debounce engine to real pointer devices.
//
// Sources read raw events from hardware and send them, in arrival order,
// to one shared channel. The consumer of that channel owns the engine: it
// asks for a verdict on button transitions and writes everything that
// passes to a Sink, which re-injects it into the system.
//
// The real implementations use the Linux evdev, uinput and GPIO character
// device interfaces. The fakes allow testing without hardware.
package input

import (
	"context"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// Event is one raw input event plus its decoded button transition.
type Event struct {
	// Type, Code and Value are the kernel input_event fields.
	Type  uint16
	Code  uint16
	Value int32

	// Millis is the kernel timestamp in milliseconds.
	Millis int64

	// IsButton is set when Button and Transition are meaningful.
	IsButton   bool
	Button     logic.Button
	Transition logic.Transition

	// Sync asks the sink to follow the event with a SYN_REPORT. Sources
	// that do not deliver their own report frames set it.
	Sync bool

	// Source names the device the event came from.
	Source string
}

// Source produces events until its context is cancelled or the device goes away.
type Source interface {
	// Name identifies the source in logs and status output.
	Name() string

	// Run sends events to out. It blocks until ctx is done or reading
	// fails, and returns nil on cancellation.
	Run(ctx context.Context, out chan<- Event) error

	// Close releases the device. It unblocks a running Run.
	Close() error
}

// Sink re-injects passed events.
type Sink interface {
	Emit(ev Event) error
	Close() error
}

// Opener opens a device node as a Source. It returns ErrNotPointer for
// nodes that should be ignored.
type Opener interface {
	Open(path string) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Source, error)

func (f OpenerFunc) Open(path string) (Source, error) { return f(path) }
