package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Cheegro/milledright-timber-web/pkg/analytics"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
	"github.com/Cheegro/milledright-timber-web/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Redis         RedisConfig
	Tracking      TrackingConfig
	Business      BusinessConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes and scrapes)
	HealthPort string

	CORSOrigins        []string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// RedisConfig holds the stats-cache Redis connection settings. An empty
// Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// TrackingConfig holds tracking policy and tag forwarding settings
type TrackingConfig struct {
	PolicyFile string
	Forwarder  analytics.ForwarderConfig
}

// BusinessConfig locates the business for the distance enrichment and the
// hourly histogram's wall clock.
type BusinessConfig struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Redis:         loadRedisConfig(),
		Tracking:      loadTrackingConfig(),
		Business:      loadBusinessConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:               getEnv("TIMBERWEB_HOST", "0.0.0.0"),
		Port:               getEnv("TIMBERWEB_PORT", "8080"),
		ReadTimeout:        getEnvDuration("TIMBERWEB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("TIMBERWEB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("TIMBERWEB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("TIMBERWEB_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:         getEnv("TIMBERWEB_HEALTH_PORT", "9090"),
		CORSOrigins:        getEnvList("TIMBERWEB_CORS_ORIGINS", nil),
		RateLimitPerMinute: getEnvInt("TIMBERWEB_RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("TIMBERWEB_RATE_LIMIT_BURST", 30),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("TIMBERWEB_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}
	if path := getEnv("TIMBERWEB_SQLITE_PATH", ""); path != "" {
		cfg.SQLitePath = path
	}
	if pgURL := getEnv("TIMBERWEB_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("TIMBERWEB_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("TIMBERWEB_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("TIMBERWEB_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	return cfg
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("TIMBERWEB_REDIS_ADDR", ""),
		Password: getEnv("TIMBERWEB_REDIS_PASSWORD", ""),
		DB:       getEnvInt("TIMBERWEB_REDIS_DB", 0),
		CacheTTL: getEnvDuration("TIMBERWEB_STATS_CACHE_TTL", 5*time.Minute),
	}
}

func loadTrackingConfig() TrackingConfig {
	return TrackingConfig{
		PolicyFile: getEnv("TIMBERWEB_POLICY_FILE", ""),
		Forwarder: analytics.ForwarderConfig{
			GA4MeasurementID: getEnv("TIMBERWEB_GA4_MEASUREMENT_ID", ""),
			GA4APISecret:     getEnv("TIMBERWEB_GA4_API_SECRET", ""),
			PixelID:          getEnv("TIMBERWEB_PIXEL_ID", ""),
		},
	}
}

func loadBusinessConfig() BusinessConfig {
	return BusinessConfig{
		Latitude:  getEnvFloat("TIMBERWEB_BUSINESS_LAT", 44.0974),
		Longitude: getEnvFloat("TIMBERWEB_BUSINESS_LON", -79.2902),
		Timezone:  getEnv("TIMBERWEB_BUSINESS_TIMEZONE", "America/Toronto"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("TIMBERWEB_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("TIMBERWEB_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Business.Latitude < -90 || c.Business.Latitude > 90 {
		return fmt.Errorf("business latitude %v out of range", c.Business.Latitude)
	}
	if c.Business.Longitude < -180 || c.Business.Longitude > 180 {
		return fmt.Errorf("business longitude %v out of range", c.Business.Longitude)
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("invalid business timezone %q: %w", c.Business.Timezone, err)
	}

	return nil
}

// Location resolves the configured business timezone. Validate guarantees
// it loads.
func (c BusinessConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
