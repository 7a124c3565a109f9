package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"slotbook/internal/metrics"
)

const backupPrefix = "slotbook_"

// Backup writes a consistent copy of the database to dest. dest must not exist.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

// CleanupBackups removes backups in dir older than retentionDays and
// returns how many were removed. retentionDays <= 0 keeps everything.
func CleanupBackups(dir string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}

// BackupService runs scheduled backups on a cron expression.
type BackupService struct {
	db            *DB
	dir           string
	schedule      string
	retentionDays int
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewBackupService(db *DB, dir, schedule string, retentionDays int, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:            db,
		dir:           dir,
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Start schedules backups until ctx is done. An invalid schedule is
// returned immediately.
func (s *BackupService) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("parse backup schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.logger.Info().Str("schedule", s.schedule).Str("dir", s.dir).Msg("backup service started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// RunOnce performs one backup followed by retention cleanup and returns
// the backup path.
func (s *BackupService) RunOnce(ctx context.Context) string {
	dest := filepath.Join(s.dir, backupPrefix+s.now().Format("20060102_150405")+".db")

	s.logger.Info().Str("path", dest).Msg("performing database backup")
	if err := s.db.Backup(ctx, dest); err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		metrics.IncBackup(false)
		return ""
	}
	metrics.IncBackup(true)

	removed, err := CleanupBackups(s.dir, s.retentionDays, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("backup cleanup failed")
	} else if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("old backups removed")
	}
	return dest
}
