package logic

// Engine decides, for each button transition, whether it passes or is
// suppressed as contact bounce.
//
// Admit must be called from a single goroutine. The reporting methods may
// be called from any goroutine.
type Engine struct {
	buttons       registry
	globalMillis  uint32
	ticksPerMilli int64
	defaulted     bool
}

// Admit processes one transition and returns its verdict.
//
// A Down is suppressed when it arrives no more than the button's threshold
// after the last admitted Up. The Up matching a suppressed Down is always
// suppressed and does not move the reference point, so a run of chatter
// collapses into the click before it. Unmonitored and unknown buttons
// always pass and their state is never touched.
func (e *Engine) Admit(b Button, t Transition, timestamp int64) Verdict {
	s := e.buttons.get(b)
	if s == nil || !s.monitored {
		return Pass
	}

	switch t {
	case Down:
		if s.suppressing {
			// Another Down before the Up we are waiting for.
			s.suppressed.Add(1)
			return Suppress
		}
		if !s.hasAccepted {
			return Pass
		}
		elapsed := timestamp - s.lastAccepted
		// A negative interval means the clock went backwards; fail open.
		if elapsed < 0 || elapsed > s.thresholdTicks {
			return Pass
		}
		s.suppressing = true
		s.suppressed.Add(1)
		return Suppress

	case Up:
		if s.suppressing {
			s.suppressing = false
			return Suppress
		}
		s.lastAccepted = timestamp
		s.hasAccepted = true
		return Pass
	}
	return Pass
}

// Elapsed returns the ticks between timestamp and b's last admitted Up,
// or -1 if no Up was admitted yet. It is meant for diagnostics and must be
// called from the goroutine that calls Admit.
func (e *Engine) Elapsed(b Button, timestamp int64) int64 {
	s := e.buttons.get(b)
	if s == nil || !s.hasAccepted {
		return -1
	}
	return timestamp - s.lastAccepted
}

// Suppressing reports whether b is between a suppressed Down and its Up.
// Must be called from the goroutine that calls Admit.
func (e *Engine) Suppressing(b Button) bool {
	s := e.buttons.get(b)
	return s != nil && s.suppressing
}

// TicksPerMilli returns the conversion factor the thresholds were built with.
func (e *Engine) TicksPerMilli() int64 {
	return e.ticksPerMilli
}

// DefaultedToLeft reports whether Left is monitored only because no button
// was selected.
func (e *Engine) DefaultedToLeft() bool {
	return e.defaulted
}
