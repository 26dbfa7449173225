// Package scheduler converts config-style interval notation into
// wall-clock durations for the control loop.
package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// ParseIntervalDuration parses "5m", "1h" or "1d" into a time.Duration.
// Returns (0, false) on anything it cannot parse.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	s := strings.ToLower(strings.TrimSpace(interval))
	if len(s) < 2 {
		return 0, false
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSpace(s[:len(s)-1]))
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
