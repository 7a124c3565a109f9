package db

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/model"
)

// SyncProvidersFromConfig applies providers.yaml to the database.
// It upserts providers, meeting types and pages, deactivates meeting types
// that disappeared from a provider, and unpublishes pages no longer listed.
// It returns the slugs whose public data may have changed.
func (db *DB) SyncProvidersFromConfig(ctx context.Context, cfg *config.ProvidersConfig) ([]string, error) {
	if cfg == nil {
		return nil, fmt.Errorf("providers config is nil")
	}

	var touched []string
	seenPages := make(map[string]struct{})

	for _, p := range cfg.Providers {
		settings := p.Settings()
		if err := db.UpsertSettings(ctx, settings); err != nil {
			return nil, fmt.Errorf("sync provider %s: %w", p.Slug, err)
		}
		touched = append(touched, p.Slug)

		typeIDs := make(map[string]int64, len(p.MeetingTypes))
		keys := make([]string, 0, len(p.MeetingTypes))
		for _, mt := range p.MeetingTypes {
			m := &model.MeetingType{
				SettingsID:      settings.ID,
				Key:             mt.Key,
				Name:            mt.Name,
				Description:     mt.Description,
				DurationMinutes: mt.DurationMinutes,
				Price:           mt.Price,
				Currency:        mt.Currency,
				LocationType:    mt.LocationType,
				Color:           mt.Color,
				IsActive:        mt.IsActive,
			}
			if err := db.UpsertMeetingType(ctx, m); err != nil {
				return nil, fmt.Errorf("sync provider %s: %w", p.Slug, err)
			}
			typeIDs[mt.Key] = m.ID
			keys = append(keys, mt.Key)
		}
		if err := db.DeactivateMissingMeetingTypes(ctx, settings.ID, keys); err != nil {
			return nil, fmt.Errorf("sync provider %s: %w", p.Slug, err)
		}

		for _, pg := range p.Pages {
			page := &model.BookingPage{
				SettingsID:      settings.ID,
				Slug:            pg.Slug,
				PageTitle:       pg.Title,
				PageDescription: pg.Description,
				WelcomeMessage:  pg.WelcomeMessage,
				IsActive:        pg.IsActive,
				IsPublished:     pg.IsPublished,
			}
			if pg.MeetingType != "" {
				id := typeIDs[pg.MeetingType]
				page.MeetingTypeID = &id
			}
			if err := db.UpsertBookingPage(ctx, page); err != nil {
				return nil, fmt.Errorf("sync provider %s: %w", p.Slug, err)
			}
			seenPages[pg.Slug] = struct{}{}
			touched = append(touched, pg.Slug)
		}
	}

	// Unpublish pages that disappeared from config.
	rows, err := db.QueryContext(ctx, `SELECT slug FROM booking_pages WHERE is_published = 1`)
	if err != nil {
		return nil, err
	}
	var stale []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			rows.Close()
			return nil, err
		}
		if _, ok := seenPages[slug]; !ok {
			stale = append(stale, slug)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, slug := range stale {
		if _, err := db.ExecContext(ctx,
			`UPDATE booking_pages SET is_published = 0, updated_at = ? WHERE slug = ?`, now, slug,
		); err != nil {
			return nil, fmt.Errorf("unpublish page %s: %w", slug, err)
		}
		touched = append(touched, slug)
	}

	return touched, nil
}
