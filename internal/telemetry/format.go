package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// formatDuration renders a duration as HH:MM:SS, or MM:SS when under an
// hour, or "n/a" when the duration is unknown or negative — the display
// form used by the console observer's telemetry lines.
func formatDuration(d time.Duration, known bool) string {
	if !known || d < 0 {
		return "n/a"
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// progressBar renders a fixed-width ASCII progress bar like "[###---]".
func progressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatTemp(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1fC", *c)
}
