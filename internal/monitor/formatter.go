package monitor

import (
	"fmt"
	"math"
)

// unavailable is shown when Prometheus has no samples yet: rates and
// quantiles over an empty window come back as NaN.
const unavailable = "n/a"

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// FormatRate formats a per-minute chat rate.
func FormatRate(rate float64) string {
	if !usable(rate) {
		return unavailable
	}
	return fmt.Sprintf("%.1f req/min", rate)
}

// FormatLatency shows sub-second values in ms. Answers that wait on the
// LLM land in seconds.
func FormatLatency(seconds float64) string {
	switch {
	case !usable(seconds):
		return unavailable
	case seconds < 1:
		return fmt.Sprintf("%.1fms", seconds*1000)
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}

// FormatPercentage formats a 0-1 ratio.
func FormatPercentage(ratio float64) string {
	if !usable(ratio) {
		return unavailable
	}
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatMemory formats resident memory given in MB.
func FormatMemory(mb float64) string {
	switch {
	case !usable(mb):
		return unavailable
	case mb >= 1024:
		return fmt.Sprintf("%.1f GB", mb/1024)
	default:
		return fmt.Sprintf("%.1f MB", mb)
	}
}

// FormatUptime renders "Xd Yh", "Xh Ym" or "Xm".
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		return unavailable
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
