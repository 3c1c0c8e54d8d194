package input

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// DefaultGPIOChip is the first GPIO controller (BCM on a Raspberry Pi).
const DefaultGPIOChip = "gpiochip0"

// GPIOLine binds a push-button on a GPIO line to a logical button. The
// button is expected to short the line to ground, so the line is requested
// active-low with a pull-up.
type GPIOLine struct {
	Button logic.Button
	Offset int
}

func (l GPIOLine) String() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(l.Button.String()), l.Offset)
}

// ParseGPIOLine parses "button:offset", e.g. "left:17".
func ParseGPIOLine(s string) (GPIOLine, error) {
	name, off, ok := strings.Cut(s, ":")
	if !ok {
		return GPIOLine{}, fmt.Errorf("gpio line %q: want button:offset", s)
	}
	b, err := logic.ParseButton(name)
	if err != nil {
		return GPIOLine{}, fmt.Errorf("gpio line %q: %w", s, err)
	}
	if !b.Valid() {
		return GPIOLine{}, fmt.Errorf("gpio line %q: a line maps to a single button", s)
	}
	n, err := strconv.Atoi(off)
	if err != nil || n < 0 {
		return GPIOLine{}, fmt.Errorf("gpio line %q: invalid offset %q", s, off)
	}
	return GPIOLine{Button: b, Offset: n}, nil
}
