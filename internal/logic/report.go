package logic

// TotalSuppressed returns the number of suppressed click attempts across
// all buttons.
func (e *Engine) TotalSuppressed() uint64 {
	var total uint64
	for i := range e.buttons {
		total += e.buttons[i].suppressed.Load()
	}
	return total
}

// Report returns one entry per monitored button, in enumeration order.
// Counts may be slightly stale when read while events are being processed.
func (e *Engine) Report() []ButtonReport {
	var out []ButtonReport
	for i := range e.buttons {
		s := &e.buttons[i]
		if !s.monitored {
			continue
		}
		out = append(out, ButtonReport{
			Button:          Button(i),
			Suppressed:      s.suppressed.Load(),
			ThresholdMillis: s.thresholdMillis,
		})
	}
	return out
}

// GlobalThresholdMillis returns the global default threshold.
func (e *Engine) GlobalThresholdMillis() uint32 {
	return e.globalMillis
}

// Monitored reports whether b participates in debouncing.
func (e *Engine) Monitored(b Button) bool {
	s := e.buttons.get(b)
	return s != nil && s.monitored
}

// Suppressed returns b's suppressed count.
func (e *Engine) Suppressed(b Button) uint64 {
	s := e.buttons.get(b)
	if s == nil {
		return 0
	}
	return s.suppressed.Load()
}

// ThresholdMillis returns b's threshold in milliseconds.
func (e *Engine) ThresholdMillis(b Button) uint32 {
	s := e.buttons.get(b)
	if s == nil {
		return 0
	}
	return s.thresholdMillis
}

// ThresholdTicks returns b's threshold in time source units.
func (e *Engine) ThresholdTicks(b Button) int64 {
	s := e.buttons.get(b)
	if s == nil {
		return 0
	}
	return s.thresholdTicks
}
