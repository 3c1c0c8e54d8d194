package clock

// Manual is a test source whose counter is set by hand. With Counter unset
// it behaves like a coarse source scaled by Ticks.
type Manual struct {
	Ticks   int64
	Counter *int64
}

// NewManual returns a Manual source with the given conversion factor.
func NewManual(ticksPerMilli int64) *Manual {
	return &Manual{Ticks: ticksPerMilli}
}

// Set switches the source to counter mode and sets the counter.
func (m *Manual) Set(v int64) {
	m.Counter = &v
}

// Advance moves the counter forward by d ticks.
func (m *Manual) Advance(d int64) {
	if m.Counter == nil {
		m.Set(d)
		return
	}
	*m.Counter += d
}

func (m *Manual) Now(eventMillis int64) int64 {
	if m.Counter != nil {
		return *m.Counter
	}
	return eventMillis * m.Ticks
}

func (m *Manual) TicksPerMilli() int64 { return m.Ticks }

func (m *Manual) Mode() Mode {
	if m.Ticks > 1 {
		return ModeHighRes
	}
	return ModeCoarse
}
