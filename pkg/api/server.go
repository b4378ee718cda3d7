package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/httputil"
	"github.com/Cheegro/milledright-timber-web/pkg/middleware"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
	"github.com/Cheegro/milledright-timber-web/pkg/stats"
)

// Server is the analytics HTTP API
type Server struct {
	router  *mux.Router
	tracker *analytics.Tracker
	stats   *stats.Service
	health  *observability.HealthChecker
	logger  *observability.Logger
	metrics *observability.Metrics
	limiter *middleware.RateLimiter
}

// Options carries the optional server collaborators. Nil fields disable the
// corresponding feature.
type Options struct {
	Health      *observability.HealthChecker
	Metrics     *observability.Metrics
	RateLimit   *middleware.RateLimitConfig
	CORSOrigins []string
}

// NewServer wires the tracking and statistics handlers onto one router
func NewServer(tracker *analytics.Tracker, statsService *stats.Service, logger *observability.Logger, opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		stats:   statsService,
		health:  opts.Health,
		logger:  logger,
		metrics: opts.Metrics,
		limiter: middleware.NewRateLimiter(opts.RateLimit),
	}

	s.router.Use(httputil.RecoveryMiddleware(logger))
	s.router.Use(httputil.LoggingMiddleware(logger))
	if len(opts.CORSOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(opts.CORSOrigins))
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Public track endpoints, rate limited per client IP
	track := s.router.PathPrefix("/api/v1/track").Subrouter()
	track.Use(s.limiter.Handler)
	track.HandleFunc("/event", s.instrument("/api/v1/track/event", s.trackEvent)).Methods("POST", "OPTIONS")
	track.HandleFunc("/pageview", s.instrument("/api/v1/track/pageview", s.trackPageView)).Methods("POST", "OPTIONS")

	// Dashboard statistics
	s.router.HandleFunc("/api/v1/stats", s.instrument("/api/v1/stats", s.getStatistics)).Methods("GET")
	s.router.HandleFunc("/api/v1/stats/recent", s.instrument("/api/v1/stats/recent", s.getRecentActivity)).Methods("GET")

	// Health probes
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	}
}

// instrument wraps a handler func with request metrics when metrics are
// configured.
func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	wrapped := s.metrics.InstrumentHandler(path, h)
	return wrapped.ServeHTTP
}

// RateLimiter exposes the track-endpoint limiter so the host process can
// start its cleanup loop.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.limiter
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
