package slots

import (
	"fmt"
	"strings"
	"time"
)

// DayWindow is the availability for one weekday.
type DayWindow struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	StartTime string `json:"startTime" yaml:"start_time"` // "09:00"
	EndTime   string `json:"endTime" yaml:"end_time"`     // "17:00", or "24:00" for midnight
}

// Interval parses the window bounds. Disabled windows are parsed as well;
// callers decide whether disabled days matter.
func (w DayWindow) Interval() (Interval, error) {
	start, err := ParseClock(w.StartTime)
	if err != nil {
		return Interval{}, &ConfigurationError{Field: "start_time", Value: w.StartTime, Reason: "expected HH:MM"}
	}
	end, err := ParseEndClock(w.EndTime)
	if err != nil {
		return Interval{}, &ConfigurationError{Field: "end_time", Value: w.EndTime, Reason: "expected HH:MM or 24:00"}
	}
	if end <= start {
		return Interval{}, &ConfigurationError{
			Field:  "end_time",
			Value:  w.EndTime,
			Reason: fmt.Sprintf("must be after start_time %s", w.StartTime),
		}
	}
	return Interval{Start: start, End: end}, nil
}

// Week holds one window per weekday, indexed by time.Weekday (0 = Sunday).
type Week [7]DayWindow

const (
	defaultStart = "09:00"
	defaultEnd   = "17:00"
)

// DefaultWeek is Monday-Friday 09:00-17:00 with the weekend disabled.
func DefaultWeek() Week {
	var w Week
	for d := time.Sunday; d <= time.Saturday; d++ {
		w[d] = DayWindow{
			Enabled:   d != time.Saturday && d != time.Sunday,
			StartTime: defaultStart,
			EndTime:   defaultEnd,
		}
	}
	return w
}

// ParseWeekday resolves a weekday name ("Monday", "monday", "mon").
func ParseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, true
		}
	}
	return 0, false
}

// ParseWeek merges the stored name-keyed availability with DefaultWeek.
// Every weekday missing from raw keeps its default entry.
func ParseWeek(raw map[string]DayWindow) (Week, error) {
	week := DefaultWeek()
	var seen [7]bool
	for name, win := range raw {
		day, ok := ParseWeekday(name)
		if !ok {
			return Week{}, &ConfigurationError{Field: "availability", Value: name, Reason: "unknown weekday"}
		}
		if seen[day] {
			return Week{}, &ConfigurationError{Field: "availability", Value: name, Reason: "duplicate weekday"}
		}
		seen[day] = true
		week[day] = win
	}
	return week, nil
}

// For returns the window for date's weekday.
func (w Week) For(date time.Time) DayWindow {
	return w[date.Weekday()]
}

// Enabled reports whether date's weekday accepts bookings at all.
func (w Week) Enabled(date time.Time) bool {
	return w.For(date).Enabled
}

// Validate checks every enabled day.
func (w Week) Validate() error {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !w[d].Enabled {
			continue
		}
		if _, err := w[d].Interval(); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
	}
	return nil
}

// Map returns the stored shape keyed by weekday name.
func (w Week) Map() map[string]DayWindow {
	out := make(map[string]DayWindow, len(w))
	for d := time.Sunday; d <= time.Saturday; d++ {
		out[d.String()] = w[d]
	}
	return out
}
