package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/api"
	"slotbook/internal/booking"
	"slotbook/internal/cache"
	"slotbook/internal/config"
	"slotbook/internal/db"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/slots"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("SLOTBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	var pages booking.PageCache
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pages = cache.NewPageCache(rdb, cfg.CacheTTL(), &logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	// Initial load + hot reload of providers configuration
	if err := config.WatchProviders(ctx, cfg.ProvidersPath(), cfg.ProvidersReloadInterval(), &logger, func(updated *config.ProvidersConfig) {
		touched, err := database.SyncProvidersFromConfig(ctx, updated)
		if err != nil {
			logger.Error().Err(err).Msg("failed to apply providers config")
			return
		}
		if pages != nil {
			pages.Invalidate(ctx, touched...)
		}
		metrics.IncProvidersSynced()
		logger.Info().Strs("slugs", touched).Msg("providers config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("providers watch failed")
	}

	sessions := booking.NewSessionStore(cfg.SessionTimeout())
	gen := slots.NewGenerator(time.Now, cfg.Booking.MinAdvanceNoticeHours)
	svc := booking.NewService(database, gen, pages, sessions, &logger)

	bus := events.NewBus(&logger)
	audit := func(_ context.Context, e events.Event) error {
		logger.Info().
			Str("event", e.Type).
			Str("booking_number", e.Booking.BookingNumber).
			Str("date", e.Booking.ScheduledDate).
			Str("time", e.Booking.StartTime).
			Str("status", e.Booking.Status).
			Msg("booking event")
		return nil
	}
	bus.Subscribe(events.BookingCreated, audit)
	bus.Subscribe(events.BookingCanceled, audit)
	svc.UseEvents(bus)

	rps, burst := cfg.RateLimit()
	server := api.NewServer(svc, database, api.Options{
		APIKey:         cfg.HTTP.AdminAPIKey,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		TrustedProxies: cfg.TrustedProxies(),
		Events:         bus,
		Logger:         &logger,
	})

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		if err := os.MkdirAll(cfg.BackupPath(), 0o755); err != nil {
			logger.Error().Err(err).Msg("failed to create backup directory")
		} else {
			backups := db.NewBackupService(database, cfg.BackupPath(), cfg.BackupSchedule(), cfg.Backup.RetentionDays, &logger)
			if err := backups.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("backup service not started")
			}
		}
	}

	go cleanupSessions(ctx, sessions, time.Minute, &logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("slotbook api started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("slotbook api stopped")
}

func cleanupSessions(ctx context.Context, sessions *booking.SessionStore, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired sessions removed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
