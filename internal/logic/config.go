package logic

import "fmt"

// ThresholdError reports a threshold outside the accepted range.
type ThresholdError struct {
	Button Button
	Value  int
	Min    int
	Max    int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("invalid threshold for '%s' button: %d (min: %dms max: %dms)", e.Button, e.Value, e.Min, e.Max)
}

type buttonConfig struct {
	monitored       bool
	explicit        bool
	thresholdMillis uint32
}

// Configurator collects thresholds and monitored buttons before the engine
// is built. It is not safe for concurrent use.
type Configurator struct {
	globalMillis uint32
	buttons      [ButtonCount]buttonConfig
}

// NewConfigurator returns a Configurator with the default global threshold
// and no monitored buttons.
func NewConfigurator() *Configurator {
	return &Configurator{globalMillis: DefaultThresholdMs}
}

// SetThreshold assigns value to target, or to the global default if target
// is ButtonAll. Out-of-range values are rejected with a *ThresholdError and
// leave the previous value in place.
func (c *Configurator) SetThreshold(value int, target Button) error {
	if value < MinThresholdMs || value > MaxThresholdMs {
		return &ThresholdError{Button: target, Value: value, Min: MinThresholdMs, Max: MaxThresholdMs}
	}
	if target == ButtonAll {
		c.globalMillis = uint32(value)
		return nil
	}
	if !target.Valid() {
		return fmt.Errorf("set threshold: unknown button %d", int(target))
	}
	c.buttons[target].thresholdMillis = uint32(value)
	c.buttons[target].explicit = true
	return nil
}

// Monitor marks b as debounced. ButtonAll monitors every button.
func (c *Configurator) Monitor(b Button) {
	if b == ButtonAll {
		for i := range c.buttons {
			c.buttons[i].monitored = true
		}
		return
	}
	if b.Valid() {
		c.buttons[b].monitored = true
	}
}

// GlobalThresholdMillis returns the current global default.
func (c *Configurator) GlobalThresholdMillis() uint32 {
	return c.globalMillis
}

// ThresholdMillis returns the threshold b would get if finalized now.
func (c *Configurator) ThresholdMillis(b Button) uint32 {
	if !b.Valid() {
		return c.globalMillis
	}
	if c.buttons[b].explicit {
		return c.buttons[b].thresholdMillis
	}
	return c.globalMillis
}

// AnyMonitored reports whether a button was selected explicitly.
func (c *Configurator) AnyMonitored() bool {
	for _, b := range c.buttons {
		if b.monitored {
			return true
		}
	}
	return false
}

// Finalize builds the engine. Buttons without an explicit threshold inherit
// the global one, every threshold is converted to ticks, and if no button
// was selected only Left is monitored.
//
// ticksPerMilli is the time source's conversion factor (1 for millisecond
// timestamps). Values below 1 are treated as 1.
func (c *Configurator) Finalize(ticksPerMilli int64) *Engine {
	if ticksPerMilli < 1 {
		ticksPerMilli = 1
	}

	e := &Engine{
		globalMillis:  c.globalMillis,
		ticksPerMilli: ticksPerMilli,
	}
	selected := c.AnyMonitored()
	for i := range c.buttons {
		cfg := c.buttons[i]
		s := &e.buttons[i]

		s.thresholdMillis = c.globalMillis
		if cfg.explicit {
			s.thresholdMillis = cfg.thresholdMillis
		}
		s.thresholdTicks = int64(s.thresholdMillis) * ticksPerMilli
		s.monitored = cfg.monitored
	}
	if !selected {
		e.buttons[ButtonLeft].monitored = true
		e.defaulted = true
	}
	return e
}
