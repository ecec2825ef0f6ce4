package signal

import (
	"fmt"
	"time"
)

const (
	clockLayout        = "15:04"
	clockSecondsLayout = "15:04:05"
)

// ParseClock parses a time of day in HH:MM or HH:MM:SS format and returns it
// along with the layout that matches its precision.
func ParseClock(s string) (time.Time, string, error) {
	layout := clockLayout
	if len(s) == len(clockSecondsLayout) {
		layout = clockSecondsLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("signal: couldn't parse time of day %q: %w", s, err)
	}
	return t, layout, nil
}

// Today resolves a time of day to the same day as now in the given location.
// Times already passed are not moved to the next day.
func Today(s string, now time.Time, loc *time.Location) (time.Time, error) {
	t, _, err := ParseClock(s)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}
