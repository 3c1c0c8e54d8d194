// Package status provides a thread-safe status tracker for the debouncer daemon.
// It is read by the HTTP handlers and the MQTT lifecycle messages.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// Reporter is the read-only engine surface. Its counters may be read from
// any goroutine.
type Reporter interface {
	Report() []logic.ButtonReport
	TotalSuppressed() uint64
	GlobalThresholdMillis() uint32
}

// Config contains daemon configuration for display.
type Config struct {
	Timing      string
	TicksPerMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	InstanceID  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Buttons           []logic.ButtonReport
	TotalSuppressed   uint64
	GlobalThresholdMs uint32
	Devices           []string
	StartTime         time.Time
	Now               time.Time
	MQTTConnected     bool
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. Debounce counters
// are not copied in; they are read from the reporter at snapshot time.
type Tracker struct {
	reporter Reporter

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given reporter, start time and config.
// A nil reporter reports no buttons.
func NewTracker(r Reporter, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		reporter: r,
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetDevices records the names of the grabbed input sources.
func (t *Tracker) SetDevices(names []string) {
	devices := append([]string(nil), names...)
	t.mu.Lock()
	t.snap.Devices = devices
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	if t.reporter != nil {
		s.Buttons = t.reporter.Report()
		s.TotalSuppressed = t.reporter.TotalSuppressed()
		s.GlobalThresholdMs = t.reporter.GlobalThresholdMillis()
	}
	s.Now = time.Now()
	return s
}
