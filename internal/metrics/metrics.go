package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	slotsGenerated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_generated",
			Help:      "Number of candidate slots returned per request.",
			Buckets:   []float64{0, 4, 8, 16, 32, 64, 128},
		},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by meeting location type.",
		},
		[]string{"location_type"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking submissions rejected by reason.",
		},
		[]string{"reason"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_cache_lookups_total",
			Help:      "Count of page cache lookups by result.",
		},
		[]string{"result"},
	)

	providersSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "providers_synced_total",
			Help:      "Count of successful providers.yaml syncs.",
		},
	)

	providersReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "providers_reloads_total",
			Help:      "Count of providers.yaml reload attempts by result.",
		},
		[]string{"result"},
	)

	backupsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Count of database backups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration, slotsGenerated, bookingCreated,
			bookingRejected, cacheLookups, providersSynced, providersReloads, backupsCompleted,
		)
	})
}

func ObserveHTTP(endpoint string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, statusLabel(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func ObserveSlots(n int) {
	slotsGenerated.Observe(float64(n))
}

func IncBookingCreated(locationType string) {
	bookingCreated.WithLabelValues(locationType).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

func IncProvidersSynced() {
	providersSynced.Inc()
}

// IncProvidersReload counts a watcher poll that saw a change: applied,
// unchanged, rejected or missing.
func IncProvidersReload(result string) {
	providersReloads.WithLabelValues(result).Inc()
}

func IncBackup(ok bool) {
	if ok {
		backupsCompleted.WithLabelValues("ok").Inc()
		return
	}
	backupsCompleted.WithLabelValues("error").Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
