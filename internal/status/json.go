package status

import (
	"encoding/json"
	"strings"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event             string       `json:"event,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	TotalSuppressed   uint64       `json:"total_suppressed"`
	GlobalThresholdMs uint32       `json:"global_threshold_ms"`
	Buttons           []ButtonJSON `json:"buttons"`
	Devices           []string     `json:"devices"`
	UptimeSeconds     int64        `json:"uptime_seconds"`
	StartTime         string       `json:"start_time"`
	Timestamp         string       `json:"timestamp"`
	MQTT              MQTTStatus   `json:"mqtt"`
	Config            ConfigJSON   `json:"config"`
}

// ButtonJSON is one monitored button.
type ButtonJSON struct {
	Name        string `json:"name"`
	Suppressed  uint64 `json:"suppressed"`
	ThresholdMs uint32 `json:"threshold_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Timing      string `json:"timing"`
	TicksPerMs  int64  `json:"ticks_per_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	InstanceID  string `json:"instance_id"`
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, 0, len(snap.Buttons))
	for _, b := range snap.Buttons {
		buttons = append(buttons, ButtonJSON{
			Name:        strings.ToLower(b.Button.String()),
			Suppressed:  b.Suppressed,
			ThresholdMs: b.ThresholdMillis,
		})
	}
	devices := snap.Devices
	if devices == nil {
		devices = []string{}
	}

	return StatusInner{
		TotalSuppressed:   snap.TotalSuppressed,
		GlobalThresholdMs: snap.GlobalThresholdMs,
		Buttons:           buttons,
		Devices:           devices,
		UptimeSeconds:     int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		MQTT:              MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Timing:      snap.Config.Timing,
			TicksPerMs:  snap.Config.TicksPerMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			InstanceID:  snap.Config.InstanceID,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
