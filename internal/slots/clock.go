package slots

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

const clockLayout = "15:04"

// ParseClock parses a strict 24-hour "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// EndOfDay is midnight at the end of the day, written "24:00".
const EndOfDay Clock = 24 * 60

// ParseEndClock is ParseClock for the end of a span. It also accepts
// "24:00" so a window or booking can run until midnight.
func ParseEndClock(s string) (Clock, error) {
	if s == "24:00" {
		return EndOfDay, nil
	}
	return ParseClock(s)
}

// MustParseClock is ParseClock for literals known to be valid.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add shifts the clock by n minutes. The result may fall outside one day;
// callers compare clocks as plain minute offsets.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Label formats the clock for buttons, e.g. "9:30 AM".
func (c Clock) Label() string {
	h := c.Hour() % 24
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute(), suffix)
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, date.Location())
}

// Interval is a half-open span of minutes [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps reports whether two half-open intervals share any minute.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Within reports whether i lies entirely inside outer.
func (i Interval) Within(outer Interval) bool {
	return i.Start >= outer.Start && i.End <= outer.End
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
