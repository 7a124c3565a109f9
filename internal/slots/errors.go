package slots

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("invalid availability configuration")
	// ErrInvalidPolicy matches every *InvalidPolicyError via errors.Is.
	ErrInvalidPolicy = errors.New("invalid meeting policy")
)

// ConfigurationError reports a malformed availability window or booking time.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Reason, e.Value)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InvalidPolicyError reports a non-positive duration or a negative buffer.
type InvalidPolicyError struct {
	Field string
	Value int
}

func (e *InvalidPolicyError) Error() string {
	if e.Field == "duration_minutes" {
		return fmt.Sprintf("%s must be positive, got %d", e.Field, e.Value)
	}
	return fmt.Sprintf("%s cannot be negative, got %d", e.Field, e.Value)
}

func (e *InvalidPolicyError) Is(target error) bool { return target == ErrInvalidPolicy }
