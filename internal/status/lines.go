package status

import (
	"fmt"

	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// DisplayName is the label used for b in menus and pages.
func DisplayName(b logic.Button) string {
	switch b {
	case logic.ButtonExtra1:
		return "4th"
	case logic.ButtonExtra2:
		return "5th"
	}
	return b.String()
}

// Lines renders the summary the way the tray menu showed it: a general
// line with the total and the global threshold, then one line per
// monitored button.
func Lines(snap Snapshot) []string {
	lines := make([]string, 0, len(snap.Buttons)+1)
	lines = append(lines, fmt.Sprintf("%-20s %6d blocks   %03d ms", "General", snap.TotalSuppressed, snap.GlobalThresholdMs))
	for _, b := range snap.Buttons {
		lines = append(lines, fmt.Sprintf("%-20s %6d blocks   %03d ms", DisplayName(b.Button)+" Mouse Button", b.Suppressed, b.ThresholdMillis))
	}
	return lines
}
