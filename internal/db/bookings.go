package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"slotbook/internal/model"
)

const (
	maxNumberAttempts = 10
	retryBaseDelay    = 100 * time.Millisecond
	retryJitter       = 200 * time.Millisecond
)

const bookingColumns = `id, public_id, booking_number, settings_id, meeting_type_id, service_name,
	service_duration_minutes, location_type, scheduled_date, start_time, end_time, timezone,
	client_name, client_email, client_phone, notes, description, status, created_at, updated_at`

func scanBooking(row scanner) (*model.Booking, error) {
	var b model.Booking
	var meetingTypeID sql.NullInt64
	var location, phone, notes, desc sql.NullString
	err := row.Scan(
		&b.ID, &b.PublicID, &b.BookingNumber, &b.SettingsID, &meetingTypeID, &b.ServiceName,
		&b.ServiceDurationMinutes, &location, &b.ScheduledDate, &b.StartTime, &b.EndTime, &b.Timezone,
		&b.ClientName, &b.ClientEmail, &phone, &notes, &desc, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.MeetingTypeID = meetingTypeID.Int64
	b.LocationType = location.String
	b.ClientPhone = phone.String
	b.Notes = notes.String
	b.Description = desc.String
	return &b, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func bookingsOnDate(ctx context.Context, q querier, settingsID int64, date string, statuses []string) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE settings_id = ? AND scheduled_date = ?`
	args := []any{settingsID, date}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY start_time, id`
	return listBookings(ctx, q, query, args...)
}

// ListBookingsOnDate returns a provider's bookings on date ("YYYY-MM-DD"),
// optionally restricted to statuses.
func (db *DB) ListBookingsOnDate(ctx context.Context, settingsID int64, date string, statuses ...string) ([]model.Booking, error) {
	out, err := bookingsOnDate(ctx, db, settingsID, date, statuses)
	if err != nil {
		return nil, fmt.Errorf("list bookings on %s: %w", date, err)
	}
	return out, nil
}

// ListBookingsBetween returns a provider's bookings with from <= date <= to.
func (db *DB) ListBookingsBetween(ctx context.Context, settingsID int64, from, to string) ([]model.Booking, error) {
	out, err := listBookings(ctx, db, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE settings_id = ? AND scheduled_date BETWEEN ? AND ?
		ORDER BY scheduled_date, start_time, id`,
		settingsID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings %s..%s: %w", from, to, err)
	}
	return out, nil
}

// GetBookingByPublicID returns the booking with the given public id.
func (db *DB) GetBookingByPublicID(ctx context.Context, publicID string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE public_id = ?`, publicID)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "get booking "+publicID)
	}
	return b, nil
}

// UpdateBookingStatus changes a booking's status and records the change.
func (db *DB) UpdateBookingStatus(ctx context.Context, publicID, status string) error {
	if !model.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var prev string
	err = tx.QueryRowContext(ctx, `SELECT id, status FROM bookings WHERE public_id = ?`, publicID).Scan(&id, &prev)
	if err != nil {
		return notFound(err, "get booking "+publicID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}

	act := model.BookingActivity{
		BookingID:    id,
		ActivityType: "status_changed",
		Action:       fmt.Sprintf("Status changed from %s to %s", prev, status),
		Metadata:     map[string]any{"from": prev, "to": status},
	}
	if err := insertActivity(ctx, tx, &act); err != nil {
		return err
	}
	return tx.Commit()
}

// ListActivities returns the audit trail of a booking, oldest first.
func (db *DB) ListActivities(ctx context.Context, bookingID int64) ([]model.BookingActivity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, activity_type, action, metadata, created_at
		FROM booking_activities WHERE booking_id = ? ORDER BY id`,
		bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []model.BookingActivity
	for rows.Next() {
		var a model.BookingActivity
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.BookingID, &a.ActivityType, &a.Action, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CheckFunc inspects the blocking bookings already committed on the new
// booking's date and returns an error to abort the insert.
type CheckFunc func(existing []model.Booking) error

// CreateBooking inserts b after check approves it against the current
// blocking bookings for b's date. The read, the check and the insert share
// one immediate transaction. A collision on the booking number is retried
// with a fresh number. Errors from check are returned unchanged.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking, check CheckFunc) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if b.PublicID == "" {
		b.PublicID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = model.StatusScheduled
	}

	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err := db.createBookingTx(ctx, b, check)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err

		delay := retryBaseDelay + rand.N(retryJitter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("allocate booking number after %d attempts: %w", maxNumberAttempts, lastErr)
}

func (db *DB) createBookingTx(ctx context.Context, b *model.Booking, check CheckFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if check != nil {
		existing, err := bookingsOnDate(ctx, tx, b.SettingsID, b.ScheduledDate, model.BlockingStatuses)
		if err != nil {
			return fmt.Errorf("load bookings on %s: %w", b.ScheduledDate, err)
		}
		if err := check(existing); err != nil {
			return err
		}
	}

	var last int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTR(booking_number, 4) AS INTEGER)), 0)
		FROM bookings WHERE settings_id = ?`,
		b.SettingsID,
	).Scan(&last)
	if err != nil {
		return fmt.Errorf("next booking number: %w", err)
	}
	b.BookingNumber = fmt.Sprintf("BK-%03d", last+1)

	var meetingTypeID any
	if b.MeetingTypeID != 0 {
		meetingTypeID = b.MeetingTypeID
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			public_id, booking_number, settings_id, meeting_type_id, service_name,
			service_duration_minutes, location_type, scheduled_date, start_time, end_time, timezone,
			client_name, client_email, client_phone, notes, description, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.PublicID, b.BookingNumber, b.SettingsID, meetingTypeID, b.ServiceName,
		b.ServiceDurationMinutes, b.LocationType, b.ScheduledDate, b.StartTime, b.EndTime, b.Timezone,
		b.ClientName, b.ClientEmail, b.ClientPhone, b.Notes, b.Description, b.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.CreatedAt, b.UpdatedAt = now, now

	act := model.BookingActivity{
		BookingID:    b.ID,
		ActivityType: "created",
		Action:       fmt.Sprintf("Booking created via public schedule page by %s", b.ClientName),
		Metadata: map[string]any{
			"booking_number": b.BookingNumber,
			"client_email":   b.ClientEmail,
			"scheduled_date": b.ScheduledDate,
			"start_time":     b.StartTime,
		},
	}
	if err := insertActivity(ctx, tx, &act); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, a *model.BookingActivity) error {
	var meta any
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		meta = string(raw)
	}
	a.CreatedAt = time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO booking_activities (booking_id, activity_type, action, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.BookingID, a.ActivityType, a.Action, meta, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
