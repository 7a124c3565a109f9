package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"slotbook/internal/model"
)

// Step is a stage of the public booking page.
type Step string

const (
	StepDateTime     Step = "date_time"
	StepDetails      Step = "details"
	StepConfirmation Step = "confirmation"
)

// Session is one booker's progress through the booking page.
type Session struct {
	ID            string
	Slug          string
	MeetingTypeID int64
	Step          Step
	Date          string
	Time          string
	Booking       *model.Booking
	StartedAt     time.Time
	UpdatedAt     time.Time
	mu            sync.Mutex
}

// NewSession creates a session on the date-time step.
func NewSession(slug string, meetingTypeID int64) *Session {
	now := time.Now()
	return &Session{
		ID:            uuid.NewString(),
		Slug:          slug,
		MeetingTypeID: meetingTypeID,
		Step:          StepDateTime,
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// Snapshot returns a copy safe to serialize while the session keeps changing.
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		ID:            s.ID,
		Slug:          s.Slug,
		MeetingTypeID: s.MeetingTypeID,
		Step:          s.Step,
		Date:          s.Date,
		Time:          s.Time,
		Booking:       s.Booking,
	}
}

// SessionView is the serialized form of a Session.
type SessionView struct {
	ID            string         `json:"id"`
	Slug          string         `json:"slug"`
	MeetingTypeID int64          `json:"meeting_type_id"`
	Step          Step           `json:"step"`
	Date          string         `json:"date,omitempty"`
	Time          string         `json:"time,omitempty"`
	Booking       *model.Booking `json:"booking,omitempty"`
}

func (s *Session) expired(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.UpdatedAt) > timeout
}

// Flow holds the allowed step transitions of the booking page.
type Flow struct {
	transitions map[Step][]Step
}

// NewFlow creates the date-time -> details -> confirmation flow.
func NewFlow() *Flow {
	return &Flow{
		transitions: map[Step][]Step{
			StepDateTime: {StepDetails},
			StepDetails:  {StepDateTime, StepConfirmation},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *Flow) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (f *Flow) move(s *Session, to Step, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !f.CanTransition(s.Step, to) {
		return ErrInvalidStep
	}
	if apply != nil {
		apply()
	}
	s.Step = to
	s.UpdatedAt = time.Now()
	return nil
}

// SelectDate picks a date on the date-time step and clears the chosen time.
func (f *Flow) SelectDate(s *Session, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Step != StepDateTime {
		return ErrInvalidStep
	}
	s.Date = date
	s.Time = ""
	s.UpdatedAt = time.Now()
	return nil
}

// SelectTime records date and time and moves to the details step.
func (f *Flow) SelectTime(s *Session, date, hhmm string) error {
	return f.move(s, StepDetails, func() {
		s.Date = date
		s.Time = hhmm
	})
}

// Back returns to the date-time step and clears the chosen time.
func (f *Flow) Back(s *Session) error {
	return f.move(s, StepDateTime, func() {
		s.Time = ""
	})
}

// Confirm moves to the confirmation step with the created booking.
func (f *Flow) Confirm(s *Session, b *model.Booking) error {
	return f.move(s, StepConfirmation, func() {
		s.Booking = b
	})
}

// Choice returns the session's date, time and meeting type.
func (s *Session) Choice() (date, hhmm string, meetingTypeID int64, step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Date, s.Time, s.MeetingTypeID, s.Step
}

// SessionStore keeps booking sessions in memory.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionStore creates a new session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Create starts and stores a new session.
func (ss *SessionStore) Create(slug string, meetingTypeID int64) *Session {
	s := NewSession(slug, meetingTypeID)
	ss.mu.Lock()
	ss.sessions[s.ID] = s
	ss.mu.Unlock()
	return s
}

// Get returns a live session or nil.
func (ss *SessionStore) Get(id string) *Session {
	ss.mu.RLock()
	s, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok || s.expired(ss.timeout, ss.now()) {
		return nil
	}
	return s
}

// Delete removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Len returns the number of stored sessions, expired ones included.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	removed := 0
	for id, s := range ss.sessions {
		if s.expired(ss.timeout, now) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
