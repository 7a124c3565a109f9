package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/metrics"
)

// Reload results reported by providersWatcher.poll.
const (
	reloadApplied   = "applied"
	reloadUnchanged = "unchanged"
	reloadRejected  = "rejected"
	reloadMissing   = "missing"
	reloadIdle      = ""
)

// WatchProviders loads providers.yaml, calls onUpdate, then polls the file
// and calls onUpdate again after every reload that changes its content.
// Invalid edits are logged and the previous config stays in effect.
func WatchProviders(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*ProvidersConfig)) error {
	if path == "" {
		path = DefaultProvidersPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	w := &providersWatcher{path: path, logger: logger, onUpdate: onUpdate}
	if err := w.load(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if result := w.poll(); result != reloadIdle {
					metrics.IncProvidersReload(result)
				}
			}
		}
	}()

	return nil
}

// providersWatcher tracks the last applied providers.yaml by mtime and
// content hash. It is driven by a single goroutine.
type providersWatcher struct {
	path     string
	logger   *zerolog.Logger
	onUpdate func(*ProvidersConfig)

	modTime time.Time
	sum     [sha256.Size]byte
	missing bool
}

// load applies the file unconditionally. Used for the initial read.
func (w *providersWatcher) load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat providers config: %w", err)
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read providers config: %w", err)
	}
	cfg, err := ParseProvidersConfig(data)
	if err != nil {
		return err
	}
	w.modTime = info.ModTime()
	w.sum = sha256.Sum256(data)
	w.apply(cfg)
	return nil
}

// poll checks the file once and returns what happened, or reloadIdle when
// nothing needed doing.
func (w *providersWatcher) poll() string {
	info, err := os.Stat(w.path)
	if err != nil {
		if w.missing {
			return reloadIdle
		}
		w.missing = true
		w.logger.Warn().Err(err).Str("path", w.path).Msg("providers file unavailable, keeping current config")
		return reloadMissing
	}
	if w.missing {
		w.missing = false
		w.logger.Info().Str("path", w.path).Msg("providers file is back")
	} else if !info.ModTime().After(w.modTime) {
		return reloadIdle
	}
	w.modTime = info.ModTime()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("providers file unreadable, keeping current config")
		return reloadRejected
	}
	sum := sha256.Sum256(data)
	if sum == w.sum {
		w.logger.Debug().Str("path", w.path).Msg("providers file touched without changes")
		return reloadUnchanged
	}

	cfg, err := ParseProvidersConfig(data)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("providers reload rejected")
		return reloadRejected
	}
	w.sum = sum
	w.logger.Info().Str("path", w.path).Int("providers", len(cfg.Providers)).Msg("providers reloaded")
	w.apply(cfg)
	return reloadApplied
}

func (w *providersWatcher) apply(cfg *ProvidersConfig) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
