package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providersYAML = `
providers:
  - slug: jane
    display_name: Jane Doe
    timezone: Europe/Berlin
    buffer_time_minutes: 10
    availability:
      Saturday: {enabled: true, start_time: "10:00", end_time: "14:00"}
    meeting_types:
      - key: intro
        name: Intro call
        duration_minutes: 30
        is_active: true
      - key: deep
        name: Deep dive
        duration_minutes: 90
        location_type: In-Person
        price: 120
        is_active: true
    pages:
      - slug: jane-intro
        meeting_type: intro
        is_active: true
        is_published: true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("SLOTBOOK_TEST_KEY", "secret")
	dbPath := filepath.Join(t.TempDir(), "nested", "slotbook.db")

	path := writeFile(t, "config.yaml", `
database:
  path: `+dbPath+`
http:
  admin_api_key: ${SLOTBOOK_TEST_KEY}
booking:
  min_advance_notice_hours: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.HTTP.AdminAPIKey)
	assert.Equal(t, 2, cfg.Booking.MinAdvanceNoticeHours)
	assert.DirExists(t, filepath.Dir(dbPath))

	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "0 3 * * *", cfg.BackupSchedule())
	assert.Equal(t, DefaultProvidersPath, cfg.ProvidersPath())
	rps, burst := cfg.RateLimit()
	assert.Equal(t, 1.0, rps)
	assert.Equal(t, 5, burst)
}

func TestLoad_RejectsNegativeNotice(t *testing.T) {
	path := writeFile(t, "config.yaml", "booking:\n  min_advance_notice_hours: -1\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "min_advance_notice_hours")
}

func TestLoad_TrustedProxies(t *testing.T) {
	path := writeFile(t, "config.yaml", `
database:
  path: `+filepath.Join(t.TempDir(), "slotbook.db")+`
http:
  trusted_proxies: ["10.0.0.0/8", " 192.0.2.1 ", "2001:db8::/32"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	got := cfg.TrustedProxies()
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "192.0.2.1/32", got[1].String())
	assert.Equal(t, "2001:db8::/32", got[2].String())

	bad := writeFile(t, "bad.yaml", "http:\n  trusted_proxies: [\"proxy.local\"]\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "http.trusted_proxies")
}

func TestParseProvidersConfig(t *testing.T) {
	cfg, err := ParseProvidersConfig([]byte(providersYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)

	p := cfg.Providers[0]
	assert.Equal(t, 30, p.DefaultDurationMinutes)
	assert.Equal(t, "USD", p.MeetingTypes[0].Currency)
	assert.Equal(t, "Zoom", p.MeetingTypes[0].LocationType)

	week := p.Week()
	assert.True(t, week[time.Saturday].Enabled)
	assert.True(t, week[time.Monday].Enabled)
	assert.False(t, week[time.Sunday].Enabled)

	s := p.Settings()
	assert.Equal(t, "jane", s.Slug)
	assert.Equal(t, 10, s.Buffer())
	assert.Equal(t, "Europe/Berlin", s.Location().String())
}

func TestProvidersConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "providers: []", "no providers defined"},
		{"bad slug", "providers:\n  - slug: Jane Doe\n    display_name: J", "invalid slug"},
		{"missing name", "providers:\n  - slug: jane", "display_name is required"},
		{"bad timezone", "providers:\n  - slug: jane\n    display_name: J\n    timezone: Nowhere/City", "unknown timezone"},
		{"negative buffer", "providers:\n  - slug: jane\n    display_name: J\n    buffer_time_minutes: -5", "buffer_time_minutes"},
		{
			"inverted window",
			"providers:\n  - slug: jane\n    display_name: J\n    availability:\n      Monday: {enabled: true, start_time: '17:00', end_time: '09:00'}",
			"availability",
		},
		{
			"zero duration",
			"providers:\n  - slug: jane\n    display_name: J\n    meeting_types:\n      - {key: a, name: A, duration_minutes: 0}",
			"duration_minutes must be positive",
		},
		{
			"bad location",
			"providers:\n  - slug: jane\n    display_name: J\n    meeting_types:\n      - {key: a, name: A, duration_minutes: 30, location_type: Skype}",
			"unsupported location_type",
		},
		{
			"page pins unknown type",
			"providers:\n  - slug: jane\n    display_name: J\n    pages:\n      - {slug: jane-x, meeting_type: nope}",
			"unknown meeting_type",
		},
		{
			"page slug clashes with provider",
			"providers:\n  - slug: jane\n    display_name: J\n    pages:\n      - {slug: jane}",
			"already used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProvidersConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWatchProviders(t *testing.T) {
	path := writeFile(t, "providers.yaml", providersYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var lastName atomic.Value
	err := WatchProviders(ctx, path, 10*time.Millisecond, nil, func(cfg *ProvidersConfig) {
		calls.Add(1)
		lastName.Store(cfg.Providers[0].DisplayName)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	updated := []byte("providers:\n  - slug: jane\n    display_name: Jane Updated\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		return calls.Load() == 2 && lastName.Load() == "Jane Updated"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProvidersWatcher_Poll(t *testing.T) {
	path := writeFile(t, "providers.yaml", providersYAML)

	var applied []string
	nop := zerolog.Nop()
	w := &providersWatcher{path: path, logger: &nop, onUpdate: func(cfg *ProvidersConfig) {
		applied = append(applied, cfg.Providers[0].DisplayName)
	}}

	require.NoError(t, w.load())
	assert.Equal(t, []string{"Jane Doe"}, applied)
	assert.Equal(t, reloadIdle, w.poll())

	touch := func(offset time.Duration) {
		ts := time.Now().Add(offset)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}

	touch(time.Hour)
	assert.Equal(t, reloadUnchanged, w.poll())
	assert.Len(t, applied, 1)

	require.NoError(t, os.WriteFile(path, []byte("providers: [{slug: \"\"}]\n"), 0o644))
	touch(2 * time.Hour)
	assert.Equal(t, reloadRejected, w.poll())
	assert.Equal(t, reloadIdle, w.poll(), "a rejected edit is not retried until the file changes again")

	require.NoError(t, os.Remove(path))
	assert.Equal(t, reloadMissing, w.poll())
	assert.Equal(t, reloadIdle, w.poll(), "missing file is reported once")

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - slug: jane\n    display_name: Jane Restored\n"), 0o644))
	assert.Equal(t, reloadApplied, w.poll())
	assert.Equal(t, []string{"Jane Doe", "Jane Restored"}, applied)
}
