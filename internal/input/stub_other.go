//go:build !linux

package input

import (
	"context"
	"errors"
)

const (
	DefaultDeviceGlob = "/dev/input/event*"
	DefaultUinputPath = "/dev/uinput"
	VirtualDeviceName = "mouse-debouncer virtual pointer"
)

var errUnsupported = errors.New("input: not supported on this platform (requires Linux)")

// EvdevOpener is not available on non-Linux platforms.
var EvdevOpener = OpenerFunc(func(string) (Source, error) {
	return nil, errUnsupported
})

// DeviceInfo describes a detected pointer device.
type DeviceInfo struct {
	Path string
	Name string
}

// ListPointers returns an error on non-Linux platforms.
func ListPointers(string) ([]DeviceInfo, error) {
	return nil, errUnsupported
}

// UinputSink is not available on non-Linux platforms.
type UinputSink struct{}

// NewUinputSink returns an error on non-Linux platforms.
func NewUinputSink(string) (*UinputSink, error) {
	return nil, errUnsupported
}

func (*UinputSink) Emit(Event) error { return errUnsupported }

func (*UinputSink) Close() error { return nil }

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns a source whose Run always fails.
func NewGPIOSource(string, []GPIOLine) *GPIOSource {
	return &GPIOSource{}
}

func (*GPIOSource) Name() string { return "gpio" }

func (*GPIOSource) Run(context.Context, chan<- Event) error { return errUnsupported }

func (*GPIOSource) Close() error { return nil }
