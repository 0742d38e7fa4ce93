package report

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds for display, keeping the seconds part below
// an hour: 3661 -> "1h 1m", 185 -> "3m 5s", 120 -> "2m", 45 -> "45s".
func FormatDuration(seconds float64) string {
	h, m, s := split(seconds)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatDurationShort is the compact variant without seconds once a minute
// has passed: "1h 1m", "3m", "45s".
func FormatDurationShort(seconds float64) string {
	h, m, s := split(seconds)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Hours converts seconds to hours.
func Hours(seconds float64) float64 {
	return seconds / 3600
}

func split(seconds float64) (h, m, s int64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return total / 3600, total % 3600 / 60, total % 60
}
