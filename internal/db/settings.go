package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

const settingsColumns = `id, slug, display_name, industry_label, timezone, default_duration_minutes,
	buffer_time_minutes, email_notifications, availability, created_at, updated_at`

// GetSettingsBySlug returns the provider settings for slug.
func (db *DB) GetSettingsBySlug(ctx context.Context, slug string) (*model.ScheduleSettings, error) {
	row := db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM schedule_settings WHERE slug = ?`, slug)
	s, err := scanSettings(row)
	if err != nil {
		return nil, notFound(err, "get settings "+slug)
	}
	return s, nil
}

// GetSettingsByID returns the provider settings with id.
func (db *DB) GetSettingsByID(ctx context.Context, id int64) (*model.ScheduleSettings, error) {
	row := db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM schedule_settings WHERE id = ?`, id)
	s, err := scanSettings(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get settings %d", id))
	}
	return s, nil
}

func scanSettings(row *sql.Row) (*model.ScheduleSettings, error) {
	var s model.ScheduleSettings
	var industry sql.NullString
	var buffer sql.NullInt64
	var availability string
	err := row.Scan(
		&s.ID, &s.Slug, &s.DisplayName, &industry, &s.Timezone, &s.DefaultDurationMinutes,
		&buffer, &s.EmailNotifications, &availability, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if industry.Valid {
		s.IndustryLabel = industry.String
	}
	if buffer.Valid {
		b := int(buffer.Int64)
		s.BufferTimeMinutes = &b
	}

	var raw map[string]slots.DayWindow
	if err := json.Unmarshal([]byte(availability), &raw); err != nil {
		return nil, fmt.Errorf("decode availability for %s: %w", s.Slug, err)
	}
	week, err := slots.ParseWeek(raw)
	if err != nil {
		return nil, fmt.Errorf("decode availability for %s: %w", s.Slug, err)
	}
	s.Availability = week
	return &s, nil
}

// UpsertSettings inserts or updates settings by slug and sets s.ID.
func (db *DB) UpsertSettings(ctx context.Context, s *model.ScheduleSettings) error {
	if s == nil {
		return fmt.Errorf("settings is nil")
	}
	availability, err := json.Marshal(s.Availability.Map())
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	var buffer any
	if s.BufferTimeMinutes != nil {
		buffer = *s.BufferTimeMinutes
	}

	now := time.Now()
	err = db.QueryRowContext(ctx, `
		INSERT INTO schedule_settings (
			slug, display_name, industry_label, timezone, default_duration_minutes,
			buffer_time_minutes, email_notifications, availability, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			display_name = excluded.display_name,
			industry_label = excluded.industry_label,
			timezone = excluded.timezone,
			default_duration_minutes = excluded.default_duration_minutes,
			buffer_time_minutes = excluded.buffer_time_minutes,
			email_notifications = excluded.email_notifications,
			availability = excluded.availability,
			updated_at = excluded.updated_at
		RETURNING id`,
		s.Slug, s.DisplayName, s.IndustryLabel, s.Timezone, s.DefaultDurationMinutes,
		buffer, s.EmailNotifications, string(availability), now, now,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("upsert settings %s: %w", s.Slug, err)
	}
	return nil
}

const meetingTypeColumns = `id, settings_id, type_key, name, description, duration_minutes, price,
	currency, location_type, color, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMeetingType(row scanner) (*model.MeetingType, error) {
	var m model.MeetingType
	var desc sql.NullString
	err := row.Scan(
		&m.ID, &m.SettingsID, &m.Key, &m.Name, &desc, &m.DurationMinutes, &m.Price,
		&m.Currency, &m.LocationType, &m.Color, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		m.Description = desc.String
	}
	return &m, nil
}

// ListMeetingTypes returns the active meeting types of a provider, newest first.
func (db *DB) ListMeetingTypes(ctx context.Context, settingsID int64) ([]model.MeetingType, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+meetingTypeColumns+`
		FROM meeting_types
		WHERE settings_id = ? AND is_active = 1
		ORDER BY created_at DESC, id DESC`,
		settingsID,
	)
	if err != nil {
		return nil, fmt.Errorf("list meeting types: %w", err)
	}
	defer rows.Close()

	var out []model.MeetingType
	for rows.Next() {
		m, err := scanMeetingType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting type: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// GetMeetingType returns a meeting type that belongs to settingsID.
func (db *DB) GetMeetingType(ctx context.Context, settingsID, id int64) (*model.MeetingType, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+meetingTypeColumns+` FROM meeting_types WHERE settings_id = ? AND id = ?`,
		settingsID, id,
	)
	m, err := scanMeetingType(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get meeting type %d", id))
	}
	return m, nil
}

// UpsertMeetingType inserts or updates a meeting type by (settings_id, key) and sets m.ID.
func (db *DB) UpsertMeetingType(ctx context.Context, m *model.MeetingType) error {
	if m == nil {
		return fmt.Errorf("meeting type is nil")
	}
	now := time.Now()
	err := db.QueryRowContext(ctx, `
		INSERT INTO meeting_types (
			settings_id, type_key, name, description, duration_minutes, price,
			currency, location_type, color, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(settings_id, type_key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			duration_minutes = excluded.duration_minutes,
			price = excluded.price,
			currency = excluded.currency,
			location_type = excluded.location_type,
			color = excluded.color,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
		RETURNING id`,
		m.SettingsID, m.Key, m.Name, m.Description, m.DurationMinutes, m.Price,
		m.Currency, m.LocationType, m.Color, m.IsActive, now, now,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("upsert meeting type %s: %w", m.Key, err)
	}
	return nil
}

// DeactivateMissingMeetingTypes deactivates every meeting type of settingsID
// whose key is not in keep.
func (db *DB) DeactivateMissingMeetingTypes(ctx context.Context, settingsID int64, keep []string) error {
	query := `UPDATE meeting_types SET is_active = 0, updated_at = ? WHERE settings_id = ? AND is_active = 1`
	args := []any{time.Now(), settingsID}
	if len(keep) > 0 {
		query += ` AND type_key NOT IN (` + placeholders(len(keep)) + `)`
		for _, k := range keep {
			args = append(args, k)
		}
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate meeting types: %w", err)
	}
	return nil
}

// GetBookingPageBySlug returns the booking page published under slug.
func (db *DB) GetBookingPageBySlug(ctx context.Context, slug string) (*model.BookingPage, error) {
	var p model.BookingPage
	var meetingTypeID sql.NullInt64
	var title, desc, welcome sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, settings_id, slug, meeting_type_id, page_title, page_description,
		       welcome_message, is_active, is_published, created_at, updated_at
		FROM booking_pages WHERE slug = ?`,
		slug,
	).Scan(
		&p.ID, &p.SettingsID, &p.Slug, &meetingTypeID, &title, &desc,
		&welcome, &p.IsActive, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "get booking page "+slug)
	}
	if meetingTypeID.Valid {
		id := meetingTypeID.Int64
		p.MeetingTypeID = &id
	}
	p.PageTitle = title.String
	p.PageDescription = desc.String
	p.WelcomeMessage = welcome.String
	return &p, nil
}

// UpsertBookingPage inserts or updates a page by slug and sets p.ID.
func (db *DB) UpsertBookingPage(ctx context.Context, p *model.BookingPage) error {
	if p == nil {
		return fmt.Errorf("booking page is nil")
	}
	var meetingTypeID any
	if p.MeetingTypeID != nil {
		meetingTypeID = *p.MeetingTypeID
	}
	now := time.Now()
	err := db.QueryRowContext(ctx, `
		INSERT INTO booking_pages (
			settings_id, slug, meeting_type_id, page_title, page_description,
			welcome_message, is_active, is_published, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			settings_id = excluded.settings_id,
			meeting_type_id = excluded.meeting_type_id,
			page_title = excluded.page_title,
			page_description = excluded.page_description,
			welcome_message = excluded.welcome_message,
			is_active = excluded.is_active,
			is_published = excluded.is_published,
			updated_at = excluded.updated_at
		RETURNING id`,
		p.SettingsID, p.Slug, meetingTypeID, p.PageTitle, p.PageDescription,
		p.WelcomeMessage, p.IsActive, p.IsPublished, now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert booking page %s: %w", p.Slug, err)
	}
	return nil
}
