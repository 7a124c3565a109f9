package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps sql.DB for the booking store.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and runs migrations. Writes use
// BEGIN IMMEDIATE so a booking transaction holds the write lock from its
// first read.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS schedule_settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			industry_label TEXT,
			timezone TEXT NOT NULL DEFAULT 'America/New_York',
			default_duration_minutes INTEGER NOT NULL DEFAULT 30,
			buffer_time_minutes INTEGER,
			email_notifications BOOLEAN NOT NULL DEFAULT 1,
			availability TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS meeting_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			settings_id INTEGER NOT NULL,
			type_key TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			duration_minutes INTEGER NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			location_type TEXT NOT NULL DEFAULT 'Zoom',
			color TEXT NOT NULL DEFAULT '#3b82f6',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (settings_id, type_key),
			FOREIGN KEY (settings_id) REFERENCES schedule_settings(id)
		)`,

		`CREATE TABLE IF NOT EXISTS booking_pages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			settings_id INTEGER NOT NULL,
			slug TEXT UNIQUE NOT NULL,
			meeting_type_id INTEGER,
			page_title TEXT,
			page_description TEXT,
			welcome_message TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			is_published BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (settings_id) REFERENCES schedule_settings(id),
			FOREIGN KEY (meeting_type_id) REFERENCES meeting_types(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT UNIQUE NOT NULL,
			booking_number TEXT NOT NULL,
			settings_id INTEGER NOT NULL,
			meeting_type_id INTEGER,
			service_name TEXT NOT NULL,
			service_duration_minutes INTEGER NOT NULL,
			location_type TEXT,
			scheduled_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			timezone TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_email TEXT NOT NULL,
			client_phone TEXT,
			notes TEXT,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'Scheduled',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (settings_id, booking_number),
			FOREIGN KEY (settings_id) REFERENCES schedule_settings(id),
			FOREIGN KEY (meeting_type_id) REFERENCES meeting_types(id)
		)`,

		`CREATE TABLE IF NOT EXISTS booking_activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			activity_type TEXT NOT NULL,
			action TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (booking_id) REFERENCES bookings(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_meeting_types_settings ON meeting_types(settings_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(settings_id, scheduled_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_booking ON booking_activities(booking_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
