package model

import (
	"time"

	"slotbook/internal/slots"
)

const (
	DefaultTimezone      = "America/New_York"
	DefaultBufferMinutes = 15
	DefaultDuration      = 30
	DefaultCurrency      = "USD"
)

// Location types offered by meeting types.
const (
	LocationZoom       = "Zoom"
	LocationGoogleMeet = "Google Meet"
	LocationPhone      = "Phone"
	LocationInPerson   = "In-Person"
)

// ValidLocationType reports whether s is a supported location type.
func ValidLocationType(s string) bool {
	switch s {
	case LocationZoom, LocationGoogleMeet, LocationPhone, LocationInPerson:
		return true
	}
	return false
}

// ScheduleSettings is a provider's scheduling configuration.
type ScheduleSettings struct {
	ID                     int64      `json:"id"`
	Slug                   string     `json:"slug"`
	DisplayName            string     `json:"display_name"`
	IndustryLabel          string     `json:"industry_label,omitempty"`
	Timezone               string     `json:"timezone"`
	DefaultDurationMinutes int        `json:"default_duration_minutes"`
	BufferTimeMinutes      *int       `json:"buffer_time_minutes,omitempty"`
	EmailNotifications     bool       `json:"email_notifications"`
	Availability           slots.Week `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Buffer returns the configured buffer, or DefaultBufferMinutes when unset.
// A stored 0 is an explicit choice and means no buffer at all; it is not
// treated as missing and never becomes DefaultBufferMinutes.
func (s *ScheduleSettings) Buffer() int {
	if s.BufferTimeMinutes == nil {
		return DefaultBufferMinutes
	}
	return *s.BufferTimeMinutes
}

// Policy applies the provider buffer before and after a meeting.
func (s *ScheduleSettings) Policy(durationMinutes int) slots.Policy {
	b := s.Buffer()
	return slots.Policy{
		DurationMinutes:     durationMinutes,
		BufferBeforeMinutes: b,
		BufferAfterMinutes:  b,
	}
}

// Location resolves the provider timezone, falling back to UTC.
func (s *ScheduleSettings) Location() *time.Location {
	tz := s.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MeetingType is a bookable kind of meeting.
type MeetingType struct {
	ID              int64     `json:"id"`
	SettingsID      int64     `json:"-"`
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price,omitempty"`
	Currency        string    `json:"currency"`
	LocationType    string    `json:"location_type"`
	Color           string    `json:"color"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BookingPage is a public page that may pin one meeting type.
type BookingPage struct {
	ID              int64     `json:"id"`
	SettingsID      int64     `json:"-"`
	Slug            string    `json:"slug"`
	MeetingTypeID   *int64    `json:"meeting_type_id,omitempty"`
	PageTitle       string    `json:"page_title,omitempty"`
	PageDescription string    `json:"page_description,omitempty"`
	WelcomeMessage  string    `json:"welcome_message,omitempty"`
	IsActive        bool      `json:"is_active"`
	IsPublished     bool      `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Live reports whether the page can be served publicly.
func (p *BookingPage) Live() bool {
	return p.IsActive && p.IsPublished
}
