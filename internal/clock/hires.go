package clock

// HighRes samples a monotonic counter on every call.
type HighRes struct {
	countsPerSecond int64
	ticksPerMilli   int64
	read            func() (int64, error)
	last            int64
}

func newHighRes(countsPerSecond int64, read func() (int64, error)) *HighRes {
	return &HighRes{
		countsPerSecond: countsPerSecond,
		ticksPerMilli:   TicksPerMilli(countsPerSecond),
		read:            read,
	}
}

// Now ignores the event time and samples the counter. A failed or
// backwards read returns the previous sample.
func (h *HighRes) Now(int64) int64 {
	v, err := h.read()
	if err != nil || v < h.last {
		return h.last
	}
	h.last = v
	return v
}

func (h *HighRes) TicksPerMilli() int64 { return h.ticksPerMilli }

func (h *HighRes) Mode() Mode { return ModeHighRes }

// CountsPerSecond returns the counter frequency.
func (h *HighRes) CountsPerSecond() int64 { return h.countsPerSecond }
