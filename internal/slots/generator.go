// Package slots computes bookable meeting start times for one calendar day.
package slots

import (
	"time"
)

// Reasons attached to unavailable slots.
const (
	ReasonBooked        = "booked"
	ReasonOutsideWindow = "outside_window"
	ReasonTooSoon       = "too_soon"
)

// Policy is the meeting-type duration and buffer rule.
type Policy struct {
	DurationMinutes     int `json:"duration_minutes"`
	BufferBeforeMinutes int `json:"buffer_before_minutes"`
	BufferAfterMinutes  int `json:"buffer_after_minutes"`
}

// Validate rejects a non-positive duration or negative buffers.
func (p Policy) Validate() error {
	if p.DurationMinutes <= 0 {
		return &InvalidPolicyError{Field: "duration_minutes", Value: p.DurationMinutes}
	}
	if p.BufferBeforeMinutes < 0 {
		return &InvalidPolicyError{Field: "buffer_before_minutes", Value: p.BufferBeforeMinutes}
	}
	if p.BufferAfterMinutes < 0 {
		return &InvalidPolicyError{Field: "buffer_after_minutes", Value: p.BufferAfterMinutes}
	}
	return nil
}

// occupied expands [start, end) by the policy buffers.
func (p Policy) occupied(start, end Clock) Interval {
	return Interval{Start: start.Add(-p.BufferBeforeMinutes), End: end.Add(p.BufferAfterMinutes)}
}

// ExistingBooking is a committed reservation treated as occupied.
type ExistingBooking struct {
	Date      time.Time
	StartTime string // "10:00"
	EndTime   string // "11:00"
}

// TimeSlot is one candidate start time.
type TimeSlot struct {
	Time      string `json:"time"`  // "09:30"
	Label     string `json:"label"` // "9:30 AM"
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Input bundles everything GenerateSlots needs. Now is only consulted when
// MinimumAdvanceNoticeHours is positive.
type Input struct {
	Window                    DayWindow
	Policy                    Policy
	Bookings                  []ExistingBooking
	Date                      time.Time
	MinimumAdvanceNoticeHours int
	Now                       time.Time
}

// GenerateSlots enumerates candidate starts from the window start in steps of
// the meeting duration and flags each one available or not. Unavailable
// candidates are kept so the page can render them disabled.
func GenerateSlots(in Input) ([]TimeSlot, error) {
	if !in.Window.Enabled {
		return []TimeSlot{}, nil
	}
	if err := in.Policy.Validate(); err != nil {
		return nil, err
	}

	window, err := in.Window.Interval()
	if err != nil {
		return nil, err
	}

	blocked, err := blockedIntervals(in.Bookings, in.Date, in.Policy)
	if err != nil {
		return nil, err
	}

	duration := in.Policy.DurationMinutes
	if window.Start.Add(duration) > window.End {
		return []TimeSlot{}, nil
	}

	var noticeCutoff time.Time
	if in.MinimumAdvanceNoticeHours > 0 {
		noticeCutoff = in.Now.Add(time.Duration(in.MinimumAdvanceNoticeHours) * time.Hour)
	}

	slots := make([]TimeSlot, 0, int(window.End-window.Start)/duration)
	for start := window.Start; start.Add(duration) <= window.End; start = start.Add(duration) {
		occupied := in.Policy.occupied(start, start.Add(duration))

		reason := ""
		switch {
		case overlapsAny(occupied, blocked):
			reason = ReasonBooked
		case !occupied.Within(window):
			reason = ReasonOutsideWindow
		case !noticeCutoff.IsZero() && start.On(in.Date).Before(noticeCutoff):
			reason = ReasonTooSoon
		}

		slots = append(slots, TimeSlot{
			Time:      start.String(),
			Label:     start.Label(),
			Available: reason == "",
			Reason:    reason,
		})
	}

	return slots, nil
}

// blockedIntervals buffers every booking on date with the current policy.
// Bookings on other dates are skipped.
func blockedIntervals(bookings []ExistingBooking, date time.Time, p Policy) ([]Interval, error) {
	blocked := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if !SameDay(b.Date, date) {
			continue
		}
		start, err := ParseClock(b.StartTime)
		if err != nil {
			return nil, &ConfigurationError{Field: "booking.start_time", Value: b.StartTime, Reason: "expected HH:MM"}
		}
		end, err := ParseEndClock(b.EndTime)
		if err != nil {
			return nil, &ConfigurationError{Field: "booking.end_time", Value: b.EndTime, Reason: "expected HH:MM"}
		}
		if end <= start {
			return nil, &ConfigurationError{Field: "booking.end_time", Value: b.EndTime, Reason: "must be after start_time " + b.StartTime}
		}
		blocked = append(blocked, p.occupied(start, end))
	}
	return blocked, nil
}

func overlapsAny(iv Interval, blocked []Interval) bool {
	for _, b := range blocked {
		if Overlaps(iv, b) {
			return true
		}
	}
	return false
}

// Generator binds a clock and an advance-notice rule to GenerateSlots.
type Generator struct {
	now         func() time.Time
	noticeHours int
}

// NewGenerator creates a generator. A nil clock means time.Now.
func NewGenerator(now func() time.Time, minimumAdvanceNoticeHours int) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now, noticeHours: minimumAdvanceNoticeHours}
}

// Generate runs GenerateSlots with the generator's clock and notice rule.
func (g *Generator) Generate(window DayWindow, policy Policy, bookings []ExistingBooking, date time.Time) ([]TimeSlot, error) {
	return GenerateSlots(Input{
		Window:                    window,
		Policy:                    policy,
		Bookings:                  bookings,
		Date:                      date,
		MinimumAdvanceNoticeHours: g.noticeHours,
		Now:                       g.now(),
	})
}

// Now exposes the generator clock to callers that validate against it.
func (g *Generator) Now() time.Time {
	return g.now()
}

// AvailableOnly returns only available slots.
func AvailableOnly(slots []TimeSlot) []TimeSlot {
	var available []TimeSlot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// Find returns the slot starting at hhmm.
func Find(slots []TimeSlot, hhmm string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.Time == hhmm {
			return s, true
		}
	}
	return TimeSlot{}, false
}
