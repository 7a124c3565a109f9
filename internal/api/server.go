// Package api exposes the public scheduling page and the provider admin
// endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"

	"slotbook/internal/booking"
	"slotbook/internal/db"
	"slotbook/internal/events"
	"slotbook/internal/model"
)

const maxBodyBytes = 64 << 10

// Records is the direct store access used by the invite and admin endpoints.
type Records interface {
	GetSettingsBySlug(ctx context.Context, slug string) (*model.ScheduleSettings, error)
	GetSettingsByID(ctx context.Context, id int64) (*model.ScheduleSettings, error)
	GetBookingByPublicID(ctx context.Context, publicID string) (*model.Booking, error)
	ListBookingsBetween(ctx context.Context, settingsID int64, from, to string) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, publicID, status string) error
}

var _ Records = (*db.DB)(nil)

// Options configures a Server.
type Options struct {
	// APIKey guards /api/admin. Admin routes are disabled when empty.
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies may set the client address via X-Forwarded-For.
	// Without any, rate limiting keys on the connection peer.
	TrustedProxies []netip.Prefix
	// Events receives booking.canceled from the admin cancel endpoint.
	Events *events.Bus
	Logger *zerolog.Logger
}

// Server routes HTTP requests to the booking service.
type Server struct {
	svc     *booking.Service
	records Records
	apiKey  string
	limiter *ipLimiter
	events  *events.Bus
	logger  *zerolog.Logger
	handler http.Handler
}

func NewServer(svc *booking.Service, records Records, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Server{
		svc:     svc,
		records: records,
		apiKey:  opts.APIKey,
		limiter: newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.TrustedProxies),
		events:  opts.Events,
		logger:  logger,
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /api/schedule/{slug}", "page", s.handlePage)
	s.route(mux, "GET /api/schedule/{slug}/dates", "dates", s.handleDates)
	s.route(mux, "GET /api/schedule/{slug}/slots", "slots", s.handleSlots)
	s.route(mux, "POST /api/schedule/{slug}/bookings", "book", s.handleBook)

	s.route(mux, "POST /api/schedule/{slug}/sessions", "session_start", s.handleStartSession)
	s.route(mux, "GET /api/sessions/{id}", "session_get", s.handleGetSession)
	s.route(mux, "POST /api/sessions/{id}/time", "session_time", s.handleChooseTime)
	s.route(mux, "POST /api/sessions/{id}/back", "session_back", s.handleBack)
	s.route(mux, "POST /api/sessions/{id}/submit", "session_submit", s.handleSubmit)

	s.route(mux, "GET /api/bookings/{id}/invite.ics", "invite", s.handleInvite)

	s.route(mux, "GET /api/admin/schedule/{slug}/bookings.xlsx", "admin_export", s.requireAPIKey(s.handleExport))
	s.route(mux, "POST /api/admin/bookings/{id}/cancel", "admin_cancel", s.requireAPIKey(s.handleCancel))

	s.handler = withRequestID(withAccessLog(mux), logger)
	return s
}

// Handler returns the root handler with request id and access logging.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) route(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	var handler http.Handler = h
	if strings.HasPrefix(pattern, http.MethodPost+" ") {
		handler = s.limiter.middleware(handler)
	}
	mux.Handle(pattern, instrument(endpoint, handler))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service and store errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, booking.ErrSlotTaken.Error())
	case errors.Is(err, booking.ErrInvalidStep):
		writeError(w, http.StatusConflict, booking.ErrInvalidStep.Error())
	case errors.Is(err, booking.ErrScheduleUnavailable):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("schedule unavailable")
		writeError(w, http.StatusServiceUnavailable, booking.ErrScheduleUnavailable.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
