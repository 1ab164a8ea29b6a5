package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseTime accepts YYYY-MM-DD, RFC3339 (with or without fractional seconds) and
// unix seconds. The result is in UTC. dateOnly reports that the YYYY-MM-DD layout
// matched, so callers can widen an upper bound to the whole day.
func ParseTime(s string) (t time.Time, dateOnly, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), false, true
	}
	return time.Time{}, false, false
}

// EndOfDay moves a date-only bound to the last instant of that day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
