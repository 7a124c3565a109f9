package config

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

// DefaultProvidersPath is the providers file used when none is configured.
const DefaultProvidersPath = "configs/providers.yaml"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ProviderConfig describes one provider's public schedule.
type ProviderConfig struct {
	Slug                   string                     `yaml:"slug"`
	DisplayName            string                     `yaml:"display_name"`
	IndustryLabel          string                     `yaml:"industry_label,omitempty"`
	Timezone               string                     `yaml:"timezone,omitempty"`
	DefaultDurationMinutes int                        `yaml:"default_duration_minutes,omitempty"`
	BufferTimeMinutes      *int                       `yaml:"buffer_time_minutes,omitempty"`
	EmailNotifications     bool                       `yaml:"email_notifications"`
	Availability           map[string]slots.DayWindow `yaml:"availability,omitempty"`
	MeetingTypes           []MeetingTypeConfig        `yaml:"meeting_types"`
	Pages                  []PageConfig               `yaml:"pages,omitempty"`
}

// MeetingTypeConfig is a bookable meeting type keyed by a stable identifier.
type MeetingTypeConfig struct {
	Key             string  `yaml:"key"`
	Name            string  `yaml:"name"`
	Description     string  `yaml:"description,omitempty"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Price           float64 `yaml:"price,omitempty"`
	Currency        string  `yaml:"currency,omitempty"`
	LocationType    string  `yaml:"location_type"`
	Color           string  `yaml:"color,omitempty"`
	IsActive        bool    `yaml:"is_active"`
}

// PageConfig is a public booking page, optionally pinned to one meeting type.
type PageConfig struct {
	Slug           string `yaml:"slug"`
	MeetingType    string `yaml:"meeting_type,omitempty"` // MeetingTypeConfig.Key
	Title          string `yaml:"title,omitempty"`
	Description    string `yaml:"description,omitempty"`
	WelcomeMessage string `yaml:"welcome_message,omitempty"`
	IsActive       bool   `yaml:"is_active"`
	IsPublished    bool   `yaml:"is_published"`
}

// ProvidersConfig is the root of providers.yaml.
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ParseProvidersConfig decodes and validates providers YAML.
func ParseProvidersConfig(data []byte) (*ProvidersConfig, error) {
	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate providers config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ProvidersConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers defined")
	}

	// Provider and page slugs share one URL namespace.
	slugs := make(map[string]string)
	claim := func(slug, owner string) error {
		if prev, ok := slugs[slug]; ok {
			return fmt.Errorf("%s: slug '%s' already used by %s", owner, slug, prev)
		}
		slugs[slug] = owner
		return nil
	}

	for i, p := range c.Providers {
		prefix := fmt.Sprintf("provider[%d]", i)

		if !slugPattern.MatchString(p.Slug) {
			return fmt.Errorf("%s: invalid slug '%s'", prefix, p.Slug)
		}
		if err := claim(p.Slug, prefix); err != nil {
			return err
		}
		if p.DisplayName == "" {
			return fmt.Errorf("%s: display_name is required", prefix)
		}
		if p.Timezone != "" {
			if _, err := time.LoadLocation(p.Timezone); err != nil {
				return fmt.Errorf("%s: unknown timezone '%s'", prefix, p.Timezone)
			}
		}
		if p.DefaultDurationMinutes < 0 {
			return fmt.Errorf("%s: default_duration_minutes cannot be negative", prefix)
		}
		if p.BufferTimeMinutes != nil && *p.BufferTimeMinutes < 0 {
			return fmt.Errorf("%s: buffer_time_minutes cannot be negative", prefix)
		}

		week, err := slots.ParseWeek(p.Availability)
		if err != nil {
			return fmt.Errorf("%s.availability: %w", prefix, err)
		}
		if err := week.Validate(); err != nil {
			return fmt.Errorf("%s.availability: %w", prefix, err)
		}

		keys := make(map[string]bool)
		for j, mt := range p.MeetingTypes {
			mtPrefix := fmt.Sprintf("%s.meeting_types[%d]", prefix, j)
			if mt.Key == "" {
				return fmt.Errorf("%s: key is required", mtPrefix)
			}
			if keys[mt.Key] {
				return fmt.Errorf("%s: duplicate key '%s'", mtPrefix, mt.Key)
			}
			keys[mt.Key] = true

			if mt.Name == "" {
				return fmt.Errorf("%s: name is required", mtPrefix)
			}
			if mt.DurationMinutes <= 0 {
				return fmt.Errorf("%s: duration_minutes must be positive, got %d", mtPrefix, mt.DurationMinutes)
			}
			if mt.Price < 0 {
				return fmt.Errorf("%s: price cannot be negative", mtPrefix)
			}
			if mt.LocationType != "" && !model.ValidLocationType(mt.LocationType) {
				return fmt.Errorf("%s: unsupported location_type '%s'", mtPrefix, mt.LocationType)
			}
		}

		for j, pg := range p.Pages {
			pgPrefix := fmt.Sprintf("%s.pages[%d]", prefix, j)
			if !slugPattern.MatchString(pg.Slug) {
				return fmt.Errorf("%s: invalid slug '%s'", pgPrefix, pg.Slug)
			}
			if err := claim(pg.Slug, pgPrefix); err != nil {
				return err
			}
			if pg.MeetingType != "" && !keys[pg.MeetingType] {
				return fmt.Errorf("%s: unknown meeting_type '%s'", pgPrefix, pg.MeetingType)
			}
		}
	}

	return nil
}

func (c *ProvidersConfig) applyDefaults() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Timezone == "" {
			p.Timezone = model.DefaultTimezone
		}
		if p.DefaultDurationMinutes == 0 {
			p.DefaultDurationMinutes = model.DefaultDuration
		}
		for j := range p.MeetingTypes {
			mt := &p.MeetingTypes[j]
			if mt.Currency == "" {
				mt.Currency = model.DefaultCurrency
			}
			if mt.LocationType == "" {
				mt.LocationType = model.LocationZoom
			}
			if mt.Color == "" {
				mt.Color = "#3b82f6"
			}
		}
	}
}

// Week returns the provider's availability merged with the default week.
// It is only valid after Validate succeeded.
func (p *ProviderConfig) Week() slots.Week {
	w, err := slots.ParseWeek(p.Availability)
	if err != nil {
		return slots.DefaultWeek()
	}
	return w
}

// Settings maps the provider onto its stored settings record.
func (p *ProviderConfig) Settings() *model.ScheduleSettings {
	return &model.ScheduleSettings{
		Slug:                   p.Slug,
		DisplayName:            p.DisplayName,
		IndustryLabel:          p.IndustryLabel,
		Timezone:               p.Timezone,
		DefaultDurationMinutes: p.DefaultDurationMinutes,
		BufferTimeMinutes:      p.BufferTimeMinutes,
		EmailNotifications:     p.EmailNotifications,
		Availability:           p.Week(),
	}
}
