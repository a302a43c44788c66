// Package schedule holds the class roster: which poll sections exist, when
// each one is live, and the per-class browser parameters. The roster is
// loaded once at startup and is immutable for the lifetime of a run.
package schedule

import (
	"fmt"
	"time"
)

// Class is one scheduled recurring session. Name is the unique key; the rest
// is opaque connection material consumed by the browser provider.
type Class struct {
	Name      string  `json:"-"`
	Section   string  `json:"section"`
	StartTime string  `json:"start_time"` // "HH:MM:SS", empty or invalid = always active
	EndTime   string  `json:"end_time"`   // "HH:MM:SS", empty or invalid = never auto-ends
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ParseTimeOfDay parses an "HH:MM:SS" wall-clock string. ok is false for an
// empty or malformed value.
func ParseTimeOfDay(s string) (t time.Time, ok bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sameDayClock maps a parsed time-of-day onto now's date for comparison.
func sameDayClock(now, tod time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, now.Location())
}

// ActiveAt reports whether the class window contains now. A class with no
// parseable start time is always active; one with a start but no end is
// active from the start onward.
func (c Class) ActiveAt(now time.Time) bool {
	start, haveStart := ParseTimeOfDay(c.StartTime)
	if !haveStart {
		return true
	}
	if now.Before(sameDayClock(now, start)) {
		return false
	}
	end, haveEnd := ParseTimeOfDay(c.EndTime)
	if !haveEnd {
		return true
	}
	return !now.After(sameDayClock(now, end))
}

// EndedAt reports whether the class window has closed. Classes without a
// parseable end time never auto-end.
func (c Class) EndedAt(now time.Time) bool {
	end, ok := ParseTimeOfDay(c.EndTime)
	if !ok {
		return false
	}
	return !now.Before(sameDayClock(now, end))
}

// Window renders the class window for logs, e.g. "09:00:00-10:15:00".
func (c Class) Window() string {
	start := c.StartTime
	if _, ok := ParseTimeOfDay(start); !ok {
		start = "always"
	}
	end := c.EndTime
	if _, ok := ParseTimeOfDay(end); !ok {
		end = "open"
	}
	return fmt.Sprintf("%s-%s", start, end)
}
