// Package calendar renders bookings as iCalendar invites.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"slotbook/internal/model"
)

const productID = "-//slotbook//booking invite//EN"

// Invite builds a VCALENDAR with one VEVENT for b. Times are resolved in the
// booking's timezone and written as UTC instants.
func Invite(b *model.Booking, settings *model.ScheduleSettings) (string, error) {
	loc := settings.Location()
	if b.Timezone != "" {
		if l, err := time.LoadLocation(b.Timezone); err == nil {
			loc = l
		}
	}

	start, err := b.Start(loc)
	if err != nil {
		return "", fmt.Errorf("booking %s start: %w", b.BookingNumber, err)
	}
	end, err := b.End(loc)
	if err != nil {
		return "", fmt.Errorf("booking %s end: %w", b.BookingNumber, err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodRequest)
	cal.SetProductId(productID)

	ev := cal.AddEvent(b.PublicID + "@slotbook")
	stamp := b.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	ev.SetDtStampTime(stamp)
	ev.SetCreatedTime(stamp)
	if !b.UpdatedAt.IsZero() {
		ev.SetModifiedAt(b.UpdatedAt)
	}
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(fmt.Sprintf("%s: %s with %s", b.ServiceName, b.ClientName, settings.DisplayName))
	ev.SetDescription(description(b, settings))
	if b.LocationType != "" {
		ev.SetLocation(b.LocationType)
	}
	ev.AddAttendee("mailto:"+b.ClientEmail, ical.WithCN(b.ClientName))

	switch b.Status {
	case model.StatusCanceled:
		ev.SetStatus(ical.ObjectStatusCancelled)
	default:
		ev.SetStatus(ical.ObjectStatusConfirmed)
	}

	return cal.Serialize(), nil
}

func description(b *model.Booking, settings *model.ScheduleSettings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking %s with %s", b.BookingNumber, settings.DisplayName)
	if b.ServiceDurationMinutes > 0 {
		fmt.Fprintf(&sb, " (%d min)", b.ServiceDurationMinutes)
	}
	if b.Notes != "" {
		sb.WriteString("\nNotes: ")
		sb.WriteString(b.Notes)
	}
	return sb.String()
}
