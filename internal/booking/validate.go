package booking

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxNameLength  = 200
	maxNotesLength = 2000
)

// ClientDetails is what the booker enters on the details step.
type ClientDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Normalize trims whitespace from every field.
func (d *ClientDetails) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Notes = strings.TrimSpace(d.Notes)
}

// Validate checks the required fields.
func (d *ClientDetails) Validate() error {
	if d.Name == "" {
		return invalid("name", "name is required")
	}
	if len([]rune(d.Name)) > maxNameLength {
		return invalid("name", "name is too long")
	}
	if d.Email == "" {
		return invalid("email", "email is required")
	}
	if !emailPattern.MatchString(d.Email) {
		return invalid("email", "please enter a valid email address")
	}
	if len(d.Notes) > maxNotesLength {
		return invalid("notes", "notes are too long")
	}
	return nil
}
