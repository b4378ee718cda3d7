// Package observability provides structured logging, Prometheus metrics,
// dependency health checks, and graceful shutdown coordination for the
// timberweb analytics service.
//
// Logging uses stdlib slog with a JSON handler. Metrics cover the tracking
// pipeline (events received, suppressed, enrichment failures, store writes)
// and the statistics engine (compute duration, cache hits). HealthChecker
// probes the record store and the Redis statistics cache.
package observability
