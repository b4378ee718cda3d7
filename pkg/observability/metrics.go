package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tracking pipeline metrics
	EventsTrackedTotal      *prometheus.CounterVec
	TrackingSuppressedTotal *prometheus.CounterVec
	EnrichmentFailuresTotal *prometheus.CounterVec
	StoreWriteFailuresTotal *prometheus.CounterVec
	TagForwardsTotal        *prometheus.CounterVec

	// Geolocation cache metrics
	GeoCacheHitsTotal   prometheus.Counter
	GeoCacheMissesTotal prometheus.Counter

	// Statistics engine metrics
	StatsComputeDuration  *prometheus.HistogramVec
	StatsCacheHitsTotal   prometheus.Counter
	StatsCacheMissesTotal prometheus.Counter

	// Session tracker metrics
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timberweb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EventsTrackedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_events_tracked_total",
				Help: "Total number of tracked records written, by kind",
			},
			[]string{"kind"},
		),
		TrackingSuppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_tracking_suppressed_total",
				Help: "Tracking calls suppressed by policy, by reason",
			},
			[]string{"reason"},
		),
		EnrichmentFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_enrichment_failures_total",
				Help: "Enrichment step failures, by stage",
			},
			[]string{"stage"},
		),
		StoreWriteFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_store_write_failures_total",
				Help: "Record store insert failures, by kind",
			},
			[]string{"kind"},
		),
		TagForwardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timberweb_tag_forwards_total",
				Help: "Third-party tag forwarding attempts, by destination and outcome",
			},
			[]string{"destination", "outcome"},
		),
		GeoCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timberweb_geo_cache_hits_total",
				Help: "Geolocation cache hits",
			},
		),
		GeoCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timberweb_geo_cache_misses_total",
				Help: "Geolocation cache misses (network lookups performed)",
			},
		),
		StatsComputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timberweb_stats_compute_duration_seconds",
				Help:    "Composite statistics computation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"window"},
		),
		StatsCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timberweb_stats_cache_hits_total",
				Help: "Statistics result cache hits",
			},
		),
		StatsCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timberweb_stats_cache_misses_total",
				Help: "Statistics result cache misses",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "timberweb_active_sessions",
				Help: "Sessions currently tracked in process memory",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsTrackedTotal,
		m.TrackingSuppressedTotal,
		m.EnrichmentFailuresTotal,
		m.StoreWriteFailuresTotal,
		m.TagForwardsTotal,
		m.GeoCacheHitsTotal,
		m.GeoCacheMissesTotal,
		m.StatsComputeDuration,
		m.StatsCacheHitsTotal,
		m.StatsCacheMissesTotal,
		m.ActiveSessions,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request count and duration metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
