//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultUinputPath is the uinput control node.
const DefaultUinputPath = "/dev/uinput"

// VirtualDeviceName is the name of the device passed events are written
// to. Openers skip it so the process never grabs its own output.
const VirtualDeviceName = "mouse-debouncer virtual pointer"

// uinput ioctls (linux/uinput.h).
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566
	uiSetMscBit  = 0x40045568

	uinputMaxNameSize = 80
	absCnt            = 64
	busVirtual        = 0x06
)

// uinputUserDev mirrors struct uinput_user_dev after its name field.
type uinputUserDev struct {
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

type uinputBit struct {
	req   uint
	value uint16
}

var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// UinputSink is a virtual pointer device. Emit must be called from one
// goroutine.
type UinputSink struct {
	f   *os.File
	fd  int
	buf []byte
}

// NewUinputSink creates the virtual pointer through the uinput node at path.
func NewUinputSink(path string) (*UinputSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &UinputSink{
		f:   f,
		fd:  int(f.Fd()),
		buf: make([]byte, timevalSize+8),
	}
	if err := s.setup(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *UinputSink) setup() error {
	bits := []uinputBit{
		{uiSetEvBit, TypeKey},
		{uiSetEvBit, TypeRel},
		{uiSetEvBit, TypeMsc},
		{uiSetMscBit, MscScan},
		{uiSetRelBit, RelX},
		{uiSetRelBit, RelY},
		{uiSetRelBit, RelWheel},
		{uiSetRelBit, RelHWheel},
		{uiSetRelBit, RelWheelHiRes},
		{uiSetRelBit, RelHWheelHiRes},
	}
	for code := CodeBtnLeft; code <= CodeBtnTask; code++ {
		bits = append(bits, uinputBit{uiSetKeyBit, code})
	}
	for _, b := range bits {
		if err := unix.IoctlSetInt(s.fd, b.req, int(b.value)); err != nil {
			return fmt.Errorf("uinput set bit %#x/%#x: %w", b.req, b.value, err)
		}
	}

	var dev bytes.Buffer
	name := make([]byte, uinputMaxNameSize)
	copy(name, VirtualDeviceName)
	dev.Write(name)
	if err := binary.Write(&dev, binary.NativeEndian, uinputUserDev{
		Bustype: busVirtual,
		Vendor:  0x1209,
		Product: 0x0001,
		Version: 1,
	}); err != nil {
		return fmt.Errorf("encode uinput device: %w", err)
	}
	if _, err := s.f.Write(dev.Bytes()); err != nil {
		return fmt.Errorf("write uinput device: %w", err)
	}
	if err := unix.IoctlSetInt(s.fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("uinput create: %w", err)
	}
	return nil
}

// Emit writes ev to the virtual device, followed by a SYN_REPORT when
// ev.Sync is set. The kernel stamps the event with its own time.
func (s *UinputSink) Emit(ev Event) error {
	if err := s.write(ev.Type, ev.Code, ev.Value); err != nil {
		return err
	}
	if ev.Sync {
		return s.write(TypeSyn, SynReport, 0)
	}
	return nil
}

func (s *UinputSink) write(typ, code uint16, value int32) error {
	b := s.buf
	clear(b[:timevalSize])
	binary.NativeEndian.PutUint16(b[timevalSize:], typ)
	binary.NativeEndian.PutUint16(b[timevalSize+2:], code)
	binary.NativeEndian.PutUint32(b[timevalSize+4:], uint32(value))
	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("uinput write: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (s *UinputSink) Close() error {
	var errs []error
	if err := unix.IoctlSetInt(s.fd, uiDevDestroy, 0); err != nil {
		errs = append(errs, fmt.Errorf("uinput destroy: %w", err))
	}
	if err := s.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close uinput: %w", err))
	}
	return errors.Join(errs...)
}
