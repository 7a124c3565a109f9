package model

import (
	"time"

	"slotbook/internal/slots"
)

// DateLayout is the stored calendar date format.
const DateLayout = "2006-01-02"

// Booking statuses.
const (
	StatusScheduled   = "Scheduled"
	StatusCompleted   = "Completed"
	StatusCanceled    = "Canceled"
	StatusNoShow      = "No-show"
	StatusRescheduled = "Rescheduled"
)

// BlockingStatuses are the statuses that occupy time on the calendar.
var BlockingStatuses = []string{StatusScheduled, StatusCompleted}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCanceled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Booking is a confirmed reservation on a provider's calendar.
type Booking struct {
	ID                     int64     `json:"-"`
	PublicID               string    `json:"id"`
	BookingNumber          string    `json:"booking_number"`
	SettingsID             int64     `json:"-"`
	MeetingTypeID          int64     `json:"meeting_type_id"`
	ServiceName            string    `json:"service_name"`
	ServiceDurationMinutes int       `json:"service_duration_minutes"`
	LocationType           string    `json:"location_type"`
	ScheduledDate          string    `json:"scheduled_date"` // "2026-03-02"
	StartTime              string    `json:"start_time"`     // "10:00"
	EndTime                string    `json:"end_time"`       // "10:30"
	Timezone               string    `json:"timezone"`
	ClientName             string    `json:"client_name"`
	ClientEmail            string    `json:"client_email"`
	ClientPhone            string    `json:"client_phone,omitempty"`
	Notes                  string    `json:"notes,omitempty"`
	Description            string    `json:"description,omitempty"`
	Status                 string    `json:"status"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Date parses ScheduledDate in loc.
func (b *Booking) Date(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, b.ScheduledDate, loc)
}

// Start returns the absolute start time in loc.
func (b *Booking) Start(loc *time.Location) (time.Time, error) {
	return b.at(b.StartTime, slots.ParseClock, loc)
}

// End returns the absolute end time in loc.
func (b *Booking) End(loc *time.Location) (time.Time, error) {
	return b.at(b.EndTime, slots.ParseEndClock, loc)
}

func (b *Booking) at(hhmm string, parse func(string) (slots.Clock, error), loc *time.Location) (time.Time, error) {
	date, err := b.Date(loc)
	if err != nil {
		return time.Time{}, err
	}
	c, err := parse(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return c.On(date), nil
}

// Duration returns the meeting length, or zero when the times do not parse.
func (b *Booking) Duration() time.Duration {
	start, err := slots.ParseClock(b.StartTime)
	if err != nil {
		return 0
	}
	end, err := slots.ParseEndClock(b.EndTime)
	if err != nil {
		return 0
	}
	return time.Duration(end-start) * time.Minute
}

// IsBlocking reports whether the booking occupies its time.
func (b *Booking) IsBlocking() bool {
	return b.Status == StatusScheduled || b.Status == StatusCompleted
}

// OverlapsWith reports whether two bookings on the same date share any minute.
func (b *Booking) OverlapsWith(other *Booking) bool {
	if b.ScheduledDate != other.ScheduledDate {
		return false
	}
	a, okA := b.interval()
	c, okC := other.interval()
	if !okA || !okC {
		return false
	}
	return slots.Overlaps(a, c)
}

func (b *Booking) interval() (slots.Interval, bool) {
	start, err := slots.ParseClock(b.StartTime)
	if err != nil {
		return slots.Interval{}, false
	}
	end, err := slots.ParseEndClock(b.EndTime)
	if err != nil {
		return slots.Interval{}, false
	}
	return slots.Interval{Start: start, End: end}, true
}

// ToExisting converts the booking to the generator's occupied-time input.
// Times are passed through unparsed so malformed rows surface as
// configuration errors from the generator.
func (b *Booking) ToExisting(loc *time.Location) slots.ExistingBooking {
	date, _ := b.Date(loc)
	return slots.ExistingBooking{
		Date:      date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
}

// ToExistingAll converts bookings for the generator.
func ToExistingAll(bookings []Booking, loc *time.Location) []slots.ExistingBooking {
	out := make([]slots.ExistingBooking, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookings[i].ToExisting(loc))
	}
	return out
}

// BookingActivity is an audit entry for a booking.
type BookingActivity struct {
	ID           int64          `json:"id"`
	BookingID    int64          `json:"booking_id"`
	ActivityType string         `json:"activity_type"`
	Action       string         `json:"action"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
