// Package logic contains the debounce decision engine.
// This package has NO external dependencies (no evdev, GPIO, MQTT, OS, or clocks).
// Timestamps are plain integers supplied by the caller in whatever unit the
// active time source uses.
package logic

import (
	"fmt"
	"strings"
)

// Button identifies one of the fixed set of pointer buttons.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonExtra1
	ButtonExtra2

	// ButtonCount is the number of real buttons.
	ButtonCount
)

// ButtonAll is a configuration target meaning every button not individually
// configured. It is never passed to Admit.
const ButtonAll Button = ButtonCount

var buttonNames = [...]string{
	ButtonLeft:   "Left",
	ButtonRight:  "Right",
	ButtonMiddle: "Middle",
	ButtonExtra1: "Extra1",
	ButtonExtra2: "Extra2",
	ButtonAll:    "All",
}

func (b Button) String() string {
	if b < 0 || int(b) >= len(buttonNames) {
		return fmt.Sprintf("Button(%d)", int(b))
	}
	return buttonNames[b]
}

// Valid reports whether b is one of the real buttons.
func (b Button) Valid() bool {
	return b >= 0 && b < ButtonCount
}

// ParseButton accepts button names case-insensitively, including the
// aliases used by the command line ("four", "five", "4th", "5th").
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return ButtonLeft, nil
	case "right", "r":
		return ButtonRight, nil
	case "middle", "m":
		return ButtonMiddle, nil
	case "extra1", "four", "4th", "side", "x1":
		return ButtonExtra1, nil
	case "extra2", "five", "5th", "extra", "x2":
		return ButtonExtra2, nil
	case "all", "every":
		return ButtonAll, nil
	}
	return ButtonAll, fmt.Errorf("unknown button %q", s)
}

// Buttons returns every real button in enumeration order.
func Buttons() []Button {
	return []Button{ButtonLeft, ButtonRight, ButtonMiddle, ButtonExtra1, ButtonExtra2}
}

// Transition is a button state change.
type Transition int

const (
	Down Transition = iota
	Up
)

func (t Transition) String() string {
	switch t {
	case Down:
		return "DOWN"
	case Up:
		return "UP"
	}
	return fmt.Sprintf("Transition(%d)", int(t))
}

// Verdict tells the input collaborator what to do with an event.
type Verdict int

const (
	// Pass lets the event continue to the rest of the system.
	Pass Verdict = iota
	// Suppress discards the event.
	Suppress
)

func (v Verdict) String() string {
	if v == Suppress {
		return "SUPPRESS"
	}
	return "PASS"
}

// Threshold limits in milliseconds.
const (
	MinThresholdMs     = 1
	MaxThresholdMs     = 500
	DefaultThresholdMs = 60
)

// ButtonReport is one line of the reporting surface.
type ButtonReport struct {
	Button          Button
	Suppressed      uint64
	ThresholdMillis uint32
}
