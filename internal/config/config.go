package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when SLOTBOOK_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Schedule      string `yaml:"schedule"` // cron expression
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Address          string  `yaml:"address"`
		RateLimitRPS     float64 `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
		AdminAPIKey      string  `yaml:"admin_api_key"`
		ShutdownTimeoutS int     `yaml:"shutdown_timeout_seconds"`
		// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		MinAdvanceNoticeHours int `yaml:"min_advance_notice_hours"`
		CacheTTLSeconds       int `yaml:"cache_ttl_seconds"`
		SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`
	} `yaml:"booking"`

	Providers struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"providers"`
}

// Load reads the YAML config at path, expanding ${ENV} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/slotbook.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values that have no sensible default.
func (c *Config) Validate() error {
	if c.Booking.MinAdvanceNoticeHours < 0 {
		return fmt.Errorf("booking.min_advance_notice_hours cannot be negative, got %d", c.Booking.MinAdvanceNoticeHours)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days cannot be negative, got %d", c.Backup.RetentionDays)
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps cannot be negative")
	}
	for _, p := range c.HTTP.TrustedProxies {
		if _, err := parseProxy(p); err != nil {
			return fmt.Errorf("http.trusted_proxies: %w", err)
		}
	}
	return nil
}

// TrustedProxies returns the validated http.trusted_proxies entries. A bare
// address becomes a single-host prefix.
func (c *Config) TrustedProxies() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.HTTP.TrustedProxies))
	for _, p := range c.HTTP.TrustedProxies {
		if prefix, err := parseProxy(p); err == nil {
			out = append(out, prefix)
		}
	}
	return out
}

func parseProxy(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (c *Config) HTTPAddress() string {
	if c.HTTP.Address == "" {
		return ":8080"
	}
	return c.HTTP.Address
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.HTTP.ShutdownTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTP.ShutdownTimeoutS) * time.Second
}

// RateLimit returns requests per second and burst for write endpoints.
func (c *Config) RateLimit() (float64, int) {
	rps, burst := c.HTTP.RateLimitRPS, c.HTTP.RateLimitBurst
	if rps == 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return rps, burst
}

func (c *Config) CacheTTL() time.Duration {
	if c.Booking.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Booking.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) BackupSchedule() string {
	if c.Backup.Schedule == "" {
		return "0 3 * * *"
	}
	return c.Backup.Schedule
}

func (c *Config) BackupPath() string {
	if c.Backup.Path == "" {
		return "backups"
	}
	return c.Backup.Path
}

func (c *Config) ProvidersPath() string {
	if c.Providers.Path == "" {
		return DefaultProvidersPath
	}
	return c.Providers.Path
}

func (c *Config) ProvidersReloadInterval() time.Duration {
	if c.Providers.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Providers.ReloadIntervalSeconds) * time.Second
}
