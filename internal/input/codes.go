package input

import (
	"errors"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// Kernel input event types and codes (linux/input-event-codes.h).
const (
	TypeSyn uint16 = 0x00
	TypeKey uint16 = 0x01
	TypeRel uint16 = 0x02
	TypeMsc uint16 = 0x04

	SynReport uint16 = 0

	CodeBtnLeft   uint16 = 0x110
	CodeBtnRight  uint16 = 0x111
	CodeBtnMiddle uint16 = 0x112
	CodeBtnSide   uint16 = 0x113
	CodeBtnExtra  uint16 = 0x114
	CodeBtnTask   uint16 = 0x117

	RelX           uint16 = 0x00
	RelY           uint16 = 0x01
	RelHWheel      uint16 = 0x06
	RelWheel       uint16 = 0x08
	RelWheelHiRes  uint16 = 0x0b
	RelHWheelHiRes uint16 = 0x0c

	MscScan uint16 = 0x04
)

// Key event values. Autorepeat (2) is not a transition.
const (
	valueUp   int32 = 0
	valueDown int32 = 1
)

// ErrNotPointer is returned by openers for devices that are not pointers.
var ErrNotPointer = errors.New("not a pointer device")

// ButtonForCode maps a key code to a logical button.
func ButtonForCode(code uint16) (logic.Button, bool) {
	switch code {
	case CodeBtnLeft:
		return logic.ButtonLeft, true
	case CodeBtnRight:
		return logic.ButtonRight, true
	case CodeBtnMiddle:
		return logic.ButtonMiddle, true
	case CodeBtnSide:
		return logic.ButtonExtra1, true
	case CodeBtnExtra:
		return logic.ButtonExtra2, true
	}
	return 0, false
}

// CodeForButton is the inverse of ButtonForCode.
func CodeForButton(b logic.Button) (uint16, bool) {
	switch b {
	case logic.ButtonLeft:
		return CodeBtnLeft, true
	case logic.ButtonRight:
		return CodeBtnRight, true
	case logic.ButtonMiddle:
		return CodeBtnMiddle, true
	case logic.ButtonExtra1:
		return CodeBtnSide, true
	case logic.ButtonExtra2:
		return CodeBtnExtra, true
	}
	return 0, false
}

// Decode builds an Event from raw fields, filling in the button
// transition for press and release of a known button. Autorepeat, other
// keys, motion, wheel and SYN events are left as plain passthrough.
func Decode(typ, code uint16, value int32, millis int64, source string) Event {
	ev := Event{
		Type:   typ,
		Code:   code,
		Value:  value,
		Millis: millis,
		Source: source,
	}
	if typ != TypeKey || (value != valueDown && value != valueUp) {
		return ev
	}
	b, ok := ButtonForCode(code)
	if !ok {
		return ev
	}
	ev.IsButton = true
	ev.Button = b
	ev.Transition = logic.Up
	if value == valueDown {
		ev.Transition = logic.Down
	}
	return ev
}

// ButtonEvent builds a synthetic button event for sources without their
// own report frames.
func ButtonEvent(b logic.Button, t logic.Transition, millis int64, source string) Event {
	code, _ := CodeForButton(b)
	value := valueUp
	if t == logic.Down {
		value = valueDown
	}
	ev := Decode(TypeKey, code, value, millis, source)
	ev.Sync = true
	return ev
}

// TimevalMillis converts a kernel timeval to milliseconds.
func TimevalMillis(sec, usec int64) int64 {
	return sec*1000 + usec/1000
}
