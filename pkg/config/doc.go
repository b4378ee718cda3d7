// Package config loads application configuration from TIMBERWEB_* environment
// variables with sensible defaults for local development.
//
// Server settings:
//
//	TIMBERWEB_HOST="0.0.0.0"
//	TIMBERWEB_PORT="8080"
//	TIMBERWEB_HEALTH_PORT="9090"
//	TIMBERWEB_READ_TIMEOUT="15s"
//	TIMBERWEB_WRITE_TIMEOUT="15s"
//	TIMBERWEB_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	TIMBERWEB_STORAGE_TYPE="sqlite"  # sqlite, postgres
//	TIMBERWEB_SQLITE_PATH="timberweb.db"
//	TIMBERWEB_POSTGRES_URL="postgres://localhost/timberweb"
//	TIMBERWEB_POSTGRES_MAX_CONNS="20"
//
// Redis / stats cache settings:
//
//	TIMBERWEB_REDIS_ADDR="localhost:6379"  # empty disables caching
//	TIMBERWEB_REDIS_PASSWORD=""
//	TIMBERWEB_REDIS_DB="0"
//	TIMBERWEB_STATS_CACHE_TTL="5m"
//
// Tracking settings:
//
//	TIMBERWEB_POLICY_FILE="/etc/timberweb/tracking.yaml"
//	TIMBERWEB_GA4_MEASUREMENT_ID=""
//	TIMBERWEB_GA4_API_SECRET=""
//	TIMBERWEB_PIXEL_ID=""
//	TIMBERWEB_CORS_ORIGINS="https://www.milledright.ca"
//	TIMBERWEB_RATE_LIMIT_PER_MINUTE="120"
//
// Business settings (distance-from-business enrichment and the hourly
// histogram's wall clock):
//
//	TIMBERWEB_BUSINESS_LAT="44.0974"
//	TIMBERWEB_BUSINESS_LON="-79.2902"
//	TIMBERWEB_BUSINESS_TIMEZONE="America/Toronto"
//
// Observability settings:
//
//	TIMBERWEB_LOG_LEVEL="info"  # debug, info, warn, error
//	TIMBERWEB_METRICS_ENABLED="true"
package config
