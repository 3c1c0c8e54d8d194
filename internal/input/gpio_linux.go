//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/mouse-debouncer/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOSource turns edge events on GPIO lines into button events. Edges are
// reported relative to the active level, so a rising edge is a press.
type GPIOSource struct {
	chipName string
	lines    []GPIOLine

	mu     sync.Mutex
	chip   *gpiocdev.Chip
	reqs   []*gpiocdev.Line
	closed bool
}

// NewGPIOSource returns a source for lines on chip. Nothing is requested
// until Run.
func NewGPIOSource(chip string, lines []GPIOLine) *GPIOSource {
	return &GPIOSource{chipName: chip, lines: lines}
}

func (s *GPIOSource) Name() string {
	return fmt.Sprintf("gpio %s %v", s.chipName, s.lines)
}

// Run requests every line with edge detection and blocks until ctx is done.
func (s *GPIOSource) Run(ctx context.Context, out chan<- Event) error {
	chip, err := gpiocdev.NewChip(s.chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", s.chipName, err)
	}

	s.mu.Lock()
	s.chip = chip
	s.mu.Unlock()
	defer s.Close()

	name := s.Name()
	for _, l := range s.lines {
		button := l.Button
		handler := func(evt gpiocdev.LineEvent) {
			t := logic.Up
			if evt.Type == gpiocdev.LineEventRisingEdge {
				t = logic.Down
			}
			select {
			case out <- ButtonEvent(button, t, evt.Timestamp.Milliseconds(), name):
			case <-ctx.Done():
			}
		}

		req, err := chip.RequestLine(l.Offset,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(handler))
		if err != nil {
			return fmt.Errorf("request %s line %d: %w", l.Button, l.Offset, err)
		}

		s.mu.Lock()
		s.reqs = append(s.reqs, req)
		s.mu.Unlock()
	}

	<-ctx.Done()
	return nil
}

// Close releases the lines, reconfiguring them to plain inputs with
// pull-down first to match the boot defaults, and closes the chip.
func (s *GPIOSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, req := range s.reqs {
		if err := req.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := req.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
