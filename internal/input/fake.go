package input

import (
	"context"
	"fmt"
	"sync"
)

// FakeSource sends a scripted list of events, then waits for its context.
type FakeSource struct {
	SourceName string

	// Events are sent in order when Run starts.
	Events []Event

	// RunError, if set, is returned by Run after the events are sent.
	RunError error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFakeSource creates a FakeSource that sends events.
func NewFakeSource(name string, events ...Event) *FakeSource {
	return &FakeSource{SourceName: name, Events: events, done: make(chan struct{})}
}

func (f *FakeSource) Name() string { return f.SourceName }

// Run sends the scripted events and blocks until ctx is done or Close is
// called. With RunError set it returns as soon as the events are sent.
func (f *FakeSource) Run(ctx context.Context, out chan<- Event) error {
	for _, ev := range f.Events {
		if ev.Source == "" {
			ev.Source = f.SourceName
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		case <-f.done:
			return nil
		}
	}
	if f.RunError != nil {
		return f.RunError
	}
	select {
	case <-ctx.Done():
	case <-f.done:
	}
	return nil
}

// Close stops Run.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeSink records emitted events for test assertions.
type FakeSink struct {
	mu sync.Mutex

	// Emitted contains every event passed to Emit.
	Emitted []Event

	// EmitError, if set, will be returned by Emit. The event is not recorded.
	EmitError error

	// IsClosed tracks if Close was called.
	IsClosed bool
}

// NewFakeSink creates a FakeSink for testing.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (f *FakeSink) Emit(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EmitError != nil {
		return f.EmitError
	}
	f.Emitted = append(f.Emitted, ev)
	return nil
}

func (f *FakeSink) Close() error {
	f.mu.Lock()
	f.IsClosed = true
	f.mu.Unlock()
	return nil
}

// Events returns a copy of the emitted events.
func (f *FakeSink) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.Emitted...)
}

// Buttons returns the emitted button events only.
func (f *FakeSink) Buttons() []Event {
	var out []Event
	for _, ev := range f.Events() {
		if ev.IsButton {
			out = append(out, ev)
		}
	}
	return out
}

// FakeOpener opens sources from a fixed table.
type FakeOpener struct {
	mu sync.Mutex

	// Sources maps a path to the source returned for it.
	Sources map[string]Source

	// Errors maps a path to the error returned for it.
	Errors map[string]error

	// Calls records every opened path.
	Calls []string
}

// NewFakeOpener creates an empty FakeOpener.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{Sources: map[string]Source{}, Errors: map[string]error{}}
}

// Add registers src for path.
func (f *FakeOpener) Add(path string, src Source) {
	f.mu.Lock()
	f.Sources[path] = src
	f.mu.Unlock()
}

func (f *FakeOpener) Open(path string) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, path)
	if err, ok := f.Errors[path]; ok {
		return nil, err
	}
	if src, ok := f.Sources[path]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("open %s: no such device", path)
}

// CallCount returns how many times path was opened.
func (f *FakeOpener) CallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == path {
			n++
		}
	}
	return n
}
