package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/api"
	"github.com/Cheegro/milledright-timber-web/pkg/config"
	"github.com/Cheegro/milledright-timber-web/pkg/enrich"
	"github.com/Cheegro/milledright-timber-web/pkg/middleware"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
	"github.com/Cheegro/milledright-timber-web/pkg/stats"
	"github.com/Cheegro/milledright-timber-web/pkg/storage"
	"github.com/Cheegro/milledright-timber-web/pkg/storage/postgres"
	"github.com/Cheegro/milledright-timber-web/pkg/storage/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("storage", cfg.Storage.Type).Info("starting timberweb")

	store, err := openStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to open record store")
		os.Exit(1)
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, stats cache disabled")
			redisClient = nil
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ips := enrich.NewIPResolver(logger, enrich.DefaultLookupEndpoints())
	geo := enrich.NewGeolocator(logger, "", metrics)
	sessions := enrich.NewSessionTracker(metrics)
	sessions.StartSweeper(ctx, enrich.DefaultSessionIdleTimeout)
	enricher := enrich.NewEnricher(ips, geo, sessions, logger,
		cfg.Business.Latitude, cfg.Business.Longitude)

	policy := analytics.NewPolicyStore(cfg.Tracking.PolicyFile, logger)
	if err := policy.LoadFile(); err != nil {
		logger.WithError(err).Warn("tracking policy file not loaded, using defaults")
	}
	go func() {
		if err := policy.Watch(ctx); err != nil {
			logger.WithError(err).Warn("policy watcher stopped")
		}
	}()

	forwarder := analytics.NewForwarder(cfg.Tracking.Forwarder, logger, metrics)
	tracker := analytics.NewTracker(store, enricher, policy, forwarder, logger, metrics)

	statsCache := stats.NewCache(redisClient, cfg.Redis.CacheTTL, logger, metrics)
	statsService := stats.NewService(store, statsCache, logger, metrics, cfg.Business.Location())

	health := observability.NewHealthChecker(store, redisClient)
	server := api.NewServer(tracker, statsService, logger, api.Options{
		Health:  health,
		Metrics: metrics,
		RateLimit: &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimitPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimitBurst,
		},
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	server.RateLimiter().StartCleanup(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, health, metrics, registry)
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(sctx context.Context) error {
		return healthServer.Shutdown(sctx)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	})

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("timberweb listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg storage.Config) (storage.RecordStore, error) {
	if cfg.Type == "postgres" {
		return postgres.New(cfg)
	}
	return sqlite.New(cfg)
}

// newHealthServer serves probes and metrics on a port the public ingress
// never exposes.
func newHealthServer(cfg *config.Config, health *observability.HealthChecker, metrics *observability.Metrics, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.Liveness)
	mux.HandleFunc("/readyz", health.Readiness)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler(registry))
	}
	return &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
}
