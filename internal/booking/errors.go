package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the slug, meeting type, booking or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken means the chosen time is no longer available.
	ErrSlotTaken = errors.New("time slot is no longer available")
	// ErrScheduleUnavailable means the provider's schedule could not be
	// computed, either because its configuration is malformed or because
	// bookings could not be loaded.
	ErrScheduleUnavailable = errors.New("schedule unavailable")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStep means a flow action is not allowed in the session's state.
	ErrInvalidStep = errors.New("action not allowed in current step")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrScheduleUnavailable, err)
}
