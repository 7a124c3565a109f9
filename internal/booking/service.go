// Package booking drives the public scheduling page: page lookup, the
// date picker, slot listing, booking submission and the step-by-step flow.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/db"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/model"
	"slotbook/internal/slots"
)

// Store is the persistence the service needs.
type Store interface {
	GetSettingsBySlug(ctx context.Context, slug string) (*model.ScheduleSettings, error)
	GetSettingsByID(ctx context.Context, id int64) (*model.ScheduleSettings, error)
	GetBookingPageBySlug(ctx context.Context, slug string) (*model.BookingPage, error)
	ListMeetingTypes(ctx context.Context, settingsID int64) ([]model.MeetingType, error)
	GetMeetingType(ctx context.Context, settingsID, id int64) (*model.MeetingType, error)
	ListBookingsOnDate(ctx context.Context, settingsID int64, date string, statuses ...string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking, check db.CheckFunc) error
}

// PageCache caches resolved pages by slug.
type PageCache interface {
	GetPage(ctx context.Context, slug string, out *PageInfo) bool
	SetPage(ctx context.Context, slug string, page *PageInfo)
	Invalidate(ctx context.Context, slugs ...string)
}

// PageInfo is everything the public page needs to render.
type PageInfo struct {
	Slug           string                     `json:"slug"`
	Settings       model.ScheduleSettings     `json:"settings"`
	Availability   map[string]slots.DayWindow `json:"availability"`
	MeetingTypes   []model.MeetingType        `json:"meeting_types"`
	PinnedType     bool                       `json:"pinned_meeting_type"`
	Title          string                     `json:"title"`
	Description    string                     `json:"description,omitempty"`
	WelcomeMessage string                     `json:"welcome_message,omitempty"`
}

// MeetingType returns the meeting type with id. A zero id selects the only
// offered type.
func (p *PageInfo) MeetingType(id int64) (*model.MeetingType, error) {
	if id == 0 {
		if len(p.MeetingTypes) == 1 {
			return &p.MeetingTypes[0], nil
		}
		return nil, invalid("meeting_type", "meeting type is required")
	}
	for i := range p.MeetingTypes {
		if p.MeetingTypes[i].ID == id {
			return &p.MeetingTypes[i], nil
		}
	}
	return nil, invalid("meeting_type", fmt.Sprintf("unknown meeting type %d", id))
}

// DateAvailability is one day in the date picker.
type DateAvailability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Date picker reasons. ReasonPast also marks slots that already started.
const (
	ReasonPast        = "past"
	ReasonDayDisabled = "day_disabled"
)

// SlotsResult is the slot list for one date and meeting type.
type SlotsResult struct {
	Date            string           `json:"date"`
	MeetingTypeID   int64            `json:"meeting_type_id"`
	DurationMinutes int              `json:"duration_minutes"`
	Timezone        string           `json:"timezone"`
	Slots           []slots.TimeSlot `json:"slots"`
}

// Request is a booking submission.
type Request struct {
	MeetingTypeID int64  `json:"meeting_type_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ClientDetails
}

// Service implements the public scheduling page.
type Service struct {
	store     Store
	cache     PageCache
	generator *slots.Generator
	sessions  *SessionStore
	flow      *Flow
	events    *events.Bus
	logger    *zerolog.Logger
}

// NewService wires the service. cache and sessions may be nil.
func NewService(store Store, generator *slots.Generator, cache PageCache, sessions *SessionStore, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if sessions == nil {
		sessions = NewSessionStore(0)
	}
	return &Service{
		store:     store,
		cache:     cache,
		generator: generator,
		sessions:  sessions,
		flow:      NewFlow(),
		logger:    logger,
	}
}

// UseEvents publishes booking lifecycle events to bus.
func (s *Service) UseEvents(bus *events.Bus) { s.events = bus }

// Sessions exposes the session store for periodic cleanup.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// Page resolves a slug. A live booking page wins; otherwise the slug is
// looked up as a provider slug.
func (s *Service) Page(ctx context.Context, slug string) (*PageInfo, error) {
	var info PageInfo
	if s.cache != nil {
		hit := s.cache.GetPage(ctx, slug, &info)
		metrics.IncCacheLookup(hit)
		if hit {
			week, err := slots.ParseWeek(info.Availability)
			if err == nil {
				info.Settings.Availability = week
				return &info, nil
			}
		}
	}

	resolved, err := s.resolvePage(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetPage(ctx, slug, resolved)
	}
	return resolved, nil
}

func (s *Service) resolvePage(ctx context.Context, slug string) (*PageInfo, error) {
	page, err := s.store.GetBookingPageBySlug(ctx, slug)
	switch {
	case err == nil && page.Live():
		settings, err := s.store.GetSettingsByID(ctx, page.SettingsID)
		if err != nil {
			return nil, s.storeErr("load settings", err)
		}
		info := newPageInfo(slug, settings)
		if page.PageTitle != "" {
			info.Title = page.PageTitle
		}
		info.Description = page.PageDescription
		info.WelcomeMessage = page.WelcomeMessage

		if page.MeetingTypeID != nil {
			mt, err := s.store.GetMeetingType(ctx, settings.ID, *page.MeetingTypeID)
			if err != nil {
				return nil, s.storeErr("load pinned meeting type", err)
			}
			if !mt.IsActive {
				return nil, fmt.Errorf("pinned meeting type %d inactive: %w", mt.ID, ErrNotFound)
			}
			info.MeetingTypes = []model.MeetingType{*mt}
			info.PinnedType = true
			return info, nil
		}
		if info.MeetingTypes, err = s.store.ListMeetingTypes(ctx, settings.ID); err != nil {
			return nil, s.storeErr("load meeting types", err)
		}
		return info, nil
	case err == nil, errors.Is(err, db.ErrNotFound):
		// fall through to provider slug
	default:
		return nil, s.storeErr("load booking page", err)
	}

	settings, err := s.store.GetSettingsBySlug(ctx, slug)
	if err != nil {
		return nil, s.storeErr("load settings", err)
	}
	info := newPageInfo(slug, settings)
	if info.MeetingTypes, err = s.store.ListMeetingTypes(ctx, settings.ID); err != nil {
		return nil, s.storeErr("load meeting types", err)
	}
	return info, nil
}

func newPageInfo(slug string, settings *model.ScheduleSettings) *PageInfo {
	return &PageInfo{
		Slug:         slug,
		Settings:     *settings,
		Availability: settings.Availability.Map(),
		Title:        settings.DisplayName,
	}
}

func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return unavailable(op, err)
}

// Dates lists every day of month with the date-picker rule applied: past
// days and disabled weekdays cannot be picked.
func (s *Service) Dates(ctx context.Context, slug string, month string) ([]DateAvailability, error) {
	info, err := s.Page(ctx, slug)
	if err != nil {
		return nil, err
	}
	loc := info.Settings.Location()

	first, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return nil, invalid("month", "invalid month format; expected YYYY-MM")
	}
	today := startOfDay(s.generator.Now().In(loc))

	var out []DateAvailability
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		day := DateAvailability{Date: d.Format(model.DateLayout), Available: true}
		switch {
		case d.Before(today):
			day.Available, day.Reason = false, ReasonPast
		case !info.Settings.Availability.Enabled(d):
			day.Available, day.Reason = false, ReasonDayDisabled
		}
		out = append(out, day)
	}
	return out, nil
}

// Slots lists the candidate start times for date and meeting type.
func (s *Service) Slots(ctx context.Context, slug, date string, meetingTypeID int64) (*SlotsResult, error) {
	info, err := s.Page(ctx, slug)
	if err != nil {
		return nil, err
	}
	mt, err := info.MeetingType(meetingTypeID)
	if err != nil {
		return nil, err
	}
	day, err := s.bookableDate(info, date)
	if err != nil {
		return nil, err
	}

	bookings, err := s.store.ListBookingsOnDate(ctx, info.Settings.ID, date, model.BlockingStatuses...)
	if err != nil {
		return nil, unavailable("load bookings", err)
	}

	list, err := s.generate(info, mt, bookings, day)
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlots(len(list))

	return &SlotsResult{
		Date:            date,
		MeetingTypeID:   mt.ID,
		DurationMinutes: mt.DurationMinutes,
		Timezone:        info.Settings.Location().String(),
		Slots:           list,
	}, nil
}

func (s *Service) generate(info *PageInfo, mt *model.MeetingType, bookings []model.Booking, day time.Time) ([]slots.TimeSlot, error) {
	loc := info.Settings.Location()
	list, err := s.generator.Generate(
		info.Settings.Availability.For(day),
		info.Settings.Policy(mt.DurationMinutes),
		model.ToExistingAll(bookings, loc),
		day,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("slug", info.Slug).Int64("meeting_type", mt.ID).Msg("slot generation failed")
		return nil, unavailable("generate slots", err)
	}
	markPast(list, day, s.generator.Now())
	return list, nil
}

// markPast disables start times that are already behind now, whatever the
// advance notice.
func markPast(list []slots.TimeSlot, day, now time.Time) {
	for i := range list {
		if !list[i].Available {
			continue
		}
		start, err := slots.ParseClock(list[i].Time)
		if err != nil {
			continue
		}
		if start.On(day).Before(now) {
			list[i].Available = false
			list[i].Reason = ReasonPast
		}
	}
}

// bookableDate parses date in the provider's timezone and rejects past days.
func (s *Service) bookableDate(info *PageInfo, date string) (time.Time, error) {
	loc := info.Settings.Location()
	day, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, invalid("date", "invalid date format; expected YYYY-MM-DD")
	}
	if day.Before(startOfDay(s.generator.Now().In(loc))) {
		return time.Time{}, invalid("date", "date is in the past")
	}
	return day, nil
}

// Book validates req and creates the booking. Availability is checked once
// against a fresh read and again inside the store transaction.
func (s *Service) Book(ctx context.Context, slug string, req Request) (*model.Booking, error) {
	b, err := s.book(ctx, slug, req)
	if err != nil {
		metrics.IncBookingRejected(rejectReason(err))
		return nil, err
	}
	metrics.IncBookingCreated(b.LocationType)
	s.logger.Info().
		Str("slug", slug).
		Str("booking_number", b.BookingNumber).
		Str("date", b.ScheduledDate).
		Str("time", b.StartTime).
		Msg("booking created")
	s.events.Publish(ctx, events.Event{Type: events.BookingCreated, Slug: slug, Booking: b})
	return b, nil
}

func (s *Service) book(ctx context.Context, slug string, req Request) (*model.Booking, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	info, err := s.Page(ctx, slug)
	if err != nil {
		return nil, err
	}
	mt, err := info.MeetingType(req.MeetingTypeID)
	if err != nil {
		return nil, err
	}
	day, err := s.bookableDate(info, req.Date)
	if err != nil {
		return nil, err
	}
	if !info.Settings.Availability.Enabled(day) {
		return nil, invalid("date", "this day is not available for booking")
	}

	start, err := slots.ParseClock(req.Time)
	if err != nil {
		return nil, invalid("time", "invalid time format; expected HH:MM")
	}
	if start.On(day).Before(s.generator.Now()) {
		return nil, invalid("time", "time is in the past")
	}

	check := func(existing []model.Booking) error {
		list, err := s.generate(info, mt, existing, day)
		if err != nil {
			return err
		}
		slot, ok := slots.Find(list, req.Time)
		if !ok {
			return invalid("time", "time is not an offered start time")
		}
		if !slot.Available {
			if slot.Reason == slots.ReasonBooked {
				return ErrSlotTaken
			}
			return invalid("time", "time is not bookable ("+slot.Reason+")")
		}
		return nil
	}

	fresh, err := s.store.ListBookingsOnDate(ctx, info.Settings.ID, req.Date, model.BlockingStatuses...)
	if err != nil {
		return nil, unavailable("load bookings", err)
	}
	if err := check(fresh); err != nil {
		return nil, err
	}

	b := &model.Booking{
		SettingsID:             info.Settings.ID,
		MeetingTypeID:          mt.ID,
		ServiceName:            mt.Name,
		ServiceDurationMinutes: mt.DurationMinutes,
		LocationType:           mt.LocationType,
		ScheduledDate:          req.Date,
		StartTime:              start.String(),
		EndTime:                start.Add(mt.DurationMinutes).String(),
		Timezone:               info.Settings.Location().String(),
		ClientName:             req.Name,
		ClientEmail:            req.Email,
		ClientPhone:            req.Phone,
		Notes:                  req.Notes,
		Description:            fmt.Sprintf("%s with %s", mt.Name, req.Name),
		Status:                 model.StatusScheduled,
	}
	if err := s.store.CreateBooking(ctx, b, check); err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrValidation) || errors.Is(err, ErrScheduleUnavailable) {
			return nil, err
		}
		return nil, unavailable("create booking", err)
	}
	return b, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}

// StartSession opens a booking flow for slug.
func (s *Service) StartSession(ctx context.Context, slug string, meetingTypeID int64) (SessionView, error) {
	info, err := s.Page(ctx, slug)
	if err != nil {
		return SessionView{}, err
	}
	mt, err := info.MeetingType(meetingTypeID)
	if err != nil {
		return SessionView{}, err
	}
	return s.sessions.Create(slug, mt.ID).Snapshot(), nil
}

// GetSession returns the current state of a session.
func (s *Service) GetSession(id string) (SessionView, error) {
	sess := s.sessions.Get(id)
	if sess == nil {
		return SessionView{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess.Snapshot(), nil
}

// ChooseTime selects a date and an available time and moves to details.
func (s *Service) ChooseTime(ctx context.Context, id, date, hhmm string) (SessionView, error) {
	sess := s.sessions.Get(id)
	if sess == nil {
		return SessionView{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	_, _, meetingTypeID, step := sess.Choice()
	if step != StepDateTime {
		return SessionView{}, ErrInvalidStep
	}

	res, err := s.Slots(ctx, sess.Slug, date, meetingTypeID)
	if err != nil {
		return SessionView{}, err
	}
	slot, ok := slots.Find(res.Slots, hhmm)
	if !ok {
		return SessionView{}, invalid("time", "time is not an offered start time")
	}
	if !slot.Available {
		if slot.Reason == slots.ReasonBooked {
			return SessionView{}, ErrSlotTaken
		}
		return SessionView{}, invalid("time", "time is not bookable ("+slot.Reason+")")
	}

	if err := s.flow.SelectDate(sess, date); err != nil {
		return SessionView{}, err
	}
	if err := s.flow.SelectTime(sess, date, hhmm); err != nil {
		return SessionView{}, err
	}
	return sess.Snapshot(), nil
}

// Back returns the session to the date-time step.
func (s *Service) Back(id string) (SessionView, error) {
	sess := s.sessions.Get(id)
	if sess == nil {
		return SessionView{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err := s.flow.Back(sess); err != nil {
		return SessionView{}, err
	}
	return sess.Snapshot(), nil
}

// Submit books the session's chosen time with details and moves to
// confirmation. A taken slot sends the session back to the date-time step.
func (s *Service) Submit(ctx context.Context, id string, details ClientDetails) (SessionView, error) {
	sess := s.sessions.Get(id)
	if sess == nil {
		return SessionView{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	date, hhmm, meetingTypeID, step := sess.Choice()
	if step != StepDetails {
		return SessionView{}, ErrInvalidStep
	}

	b, err := s.Book(ctx, sess.Slug, Request{
		MeetingTypeID: meetingTypeID,
		Date:          date,
		Time:          hhmm,
		ClientDetails: details,
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			_ = s.flow.Back(sess)
		}
		return SessionView{}, err
	}
	if err := s.flow.Confirm(sess, b); err != nil {
		return SessionView{}, err
	}
	return sess.Snapshot(), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
