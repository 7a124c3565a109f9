package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/calendar"
	"slotbook/internal/events"
	"slotbook/internal/export"
	"slotbook/internal/model"
)

// MaxExportDaysRange bounds the admin export period.
const MaxExportDaysRange = 366

// GET /api/schedule/{slug}
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.Page(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GET /api/schedule/{slug}/dates?month=YYYY-MM
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		writeError(w, http.StatusBadRequest, "month is required")
		return
	}
	days, err := s.svc.Dates(r.Context(), r.PathValue("slug"), month)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "dates": days})
}

// GET /api/schedule/{slug}/slots?date=YYYY-MM-DD&meeting_type=ID
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	meetingTypeID, ok := parseMeetingType(w, q.Get("meeting_type"))
	if !ok {
		return
	}
	res, err := s.svc.Slots(r.Context(), r.PathValue("slug"), date, meetingTypeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseMeetingType(w http.ResponseWriter, raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid meeting_type")
		return 0, false
	}
	return id, true
}

// POST /api/schedule/{slug}/bookings
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if !decodeJSON(w, r, &req, false) {
		return
	}
	b, err := s.svc.Book(r.Context(), r.PathValue("slug"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type startSessionRequest struct {
	MeetingTypeID int64 `json:"meeting_type_id"`
}

// POST /api/schedule/{slug}/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	view, err := s.svc.StartSession(r.Context(), r.PathValue("slug"), req.MeetingTypeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type chooseTimeRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// POST /api/sessions/{id}/time
func (s *Server) handleChooseTime(w http.ResponseWriter, r *http.Request) {
	var req chooseTimeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}
	view, err := s.svc.ChooseTime(r.Context(), r.PathValue("id"), req.Date, req.Time)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/sessions/{id}/back
func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Back(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/sessions/{id}/submit
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var details booking.ClientDetails
	if !decodeJSON(w, r, &details, false) {
		return
	}
	view, err := s.svc.Submit(r.Context(), r.PathValue("id"), details)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/bookings/{id}/invite.ics
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	b, err := s.records.GetBookingByPublicID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	settings, err := s.records.GetSettingsByID(r.Context(), b.SettingsID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ics, err := calendar.Invite(b, settings)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.BookingNumber+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics))
}

// GET /api/admin/schedule/{slug}/bookings.xlsx?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := exportPeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slug := r.PathValue("slug")
	settings, err := s.records.GetSettingsBySlug(r.Context(), slug)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	bookings, err := s.records.ListBookingsBetween(r.Context(), settings.ID, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, settings, bookings); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s_%s_%s.xlsx", slug, from, to)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func exportPeriod(from, to string) (string, string, error) {
	if from == "" || to == "" {
		return "", "", fmt.Errorf("from and to are required")
	}
	start, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return "", "", fmt.Errorf("invalid from format; expected YYYY-MM-DD")
	}
	end, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return "", "", fmt.Errorf("invalid to format; expected YYYY-MM-DD")
	}
	if start.After(end) {
		return "", "", fmt.Errorf("from must be before or equal to to")
	}
	if int(end.Sub(start).Hours()/24) > MaxExportDaysRange {
		return "", "", fmt.Errorf("date range exceeds maximum of %d days", MaxExportDaysRange)
	}
	return from, to, nil
}

// POST /api/admin/bookings/{id}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.records.UpdateBookingStatus(r.Context(), id, model.StatusCanceled); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	b, err := s.records.GetBookingByPublicID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info().Str("booking_number", b.BookingNumber).Msg("booking canceled")
	s.events.Publish(r.Context(), events.Event{Type: events.BookingCanceled, Booking: b})
	writeJSON(w, http.StatusOK, b)
}
