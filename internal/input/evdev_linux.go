//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// DefaultDeviceGlob matches every evdev node.
const DefaultDeviceGlob = "/dev/input/event*"

// evioCSClockID is EVIOCSCLOCKID, _IOW('E', 0xa0, int).
const evioCSClockID = 0x400445a0

// EvdevSource reads events from one grabbed evdev pointer device.
type EvdevSource struct {
	dev       *evdev.InputDevice
	name      string
	monotonic bool

	closeOnce sync.Once
	closeErr  error
}

// EvdevOpener opens evdev nodes that look like pointer devices.
var EvdevOpener = OpenerFunc(func(path string) (Source, error) {
	return OpenEvdev(path)
})

// OpenEvdev opens path and checks that it is a pointer device. The device
// is not grabbed until Run. Its event clock is switched to CLOCK_MONOTONIC
// so timestamps match GPIO edge events; if that fails the device keeps its
// default clock and Monotonic reports false.
func OpenEvdev(path string) (*EvdevSource, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if dev.Name == VirtualDeviceName || !isPointer(dev) {
		dev.File.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotPointer)
	}

	s := &EvdevSource{
		dev:  dev,
		name: fmt.Sprintf("%s (%s)", dev.Name, path),
	}
	if err := unix.IoctlSetPointerInt(int(dev.File.Fd()), evioCSClockID, unix.CLOCK_MONOTONIC); err == nil {
		s.monotonic = true
	}
	return s, nil
}

// isPointer reports whether dev has a left button and relative axes.
func isPointer(dev *evdev.InputDevice) bool {
	var hasLeft, hasRel bool
	for ct, codes := range dev.Capabilities {
		switch uint16(ct.Type) {
		case TypeKey:
			for _, c := range codes {
				if uint16(c.Code) == CodeBtnLeft {
					hasLeft = true
				}
			}
		case TypeRel:
			hasRel = len(codes) > 0
		}
	}
	return hasLeft && hasRel
}

func (s *EvdevSource) Name() string { return s.name }

// Path returns the device node.
func (s *EvdevSource) Path() string { return s.dev.Fn }

// Monotonic reports whether event timestamps use CLOCK_MONOTONIC.
func (s *EvdevSource) Monotonic() bool { return s.monotonic }

// Run grabs the device so that no other reader sees its events, then
// forwards every event to out.
func (s *EvdevSource) Run(ctx context.Context, out chan<- Event) error {
	if err := s.dev.Grab(); err != nil {
		return fmt.Errorf("grab %s: %w", s.dev.Fn, err)
	}
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		raw, err := s.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.dev.Fn, err)
		}
		ev := Decode(raw.Type, raw.Code, raw.Value, TimevalMillis(int64(raw.Time.Sec), int64(raw.Time.Usec)), s.name)
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the grab and closes the device. A read blocked in the
// kernel returns with the next event from the device.
func (s *EvdevSource) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.dev.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release grab: %w", err))
		}
		if err := s.dev.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// DeviceInfo describes a detected pointer device.
type DeviceInfo struct {
	Path string
	Name string
}

// ListPointers probes every node matching glob and returns the pointer devices.
func ListPointers(glob string) ([]DeviceInfo, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", glob, err)
	}
	sort.Strings(paths)

	var out []DeviceInfo
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		if dev.Name != VirtualDeviceName && isPointer(dev) {
			out = append(out, DeviceInfo{Path: p, Name: dev.Name})
		}
		dev.File.Close()
	}
	return out, nil
}
