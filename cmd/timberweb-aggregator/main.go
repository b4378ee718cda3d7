package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Cheegro/milledright-timber-web/pkg/config"
	"github.com/Cheegro/milledright-timber-web/pkg/observability"
	"github.com/Cheegro/milledright-timber-web/pkg/stats"
	"github.com/Cheegro/milledright-timber-web/pkg/storage"
	"github.com/Cheegro/milledright-timber-web/pkg/storage/postgres"
	"github.com/Cheegro/milledright-timber-web/pkg/storage/sqlite"
)

var (
	warmSchedule = flag.String("warm-schedule", getEnv("TIMBERWEB_WARM_SCHEDULE", "*/5 * * * *"), "Cron schedule for stats cache warming")
	windows      = flag.String("windows", getEnv("TIMBERWEB_WARM_WINDOWS", "7,30,90"), "Comma-separated day windows to precompute")
	logLevel     = flag.String("log-level", getEnv("TIMBERWEB_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	runOnce      = flag.Bool("run-once", false, "Warm the cache once and exit")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logger := setupLogger(*logLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("TIMBERWEB_REDIS_ADDR must be set, the aggregator only exists to warm the Redis stats cache")
	}

	windowDays, err := parseWindows(*windows)
	if err != nil {
		logger.Fatalf("Invalid --windows value %q: %v", *windows, err)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to open record store: %v", err)
	}
	defer store.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("Failed to ping redis: %v", err)
	}
	defer redisClient.Close()

	svcLogger := observability.NewLogger(observability.ParseLogLevel(*logLevel), os.Stdout)
	cache := stats.NewCache(redisClient, cfg.Redis.CacheTTL, svcLogger, nil)
	service := stats.NewService(store, cache, svcLogger, nil, cfg.Business.Location())

	if *runOnce {
		warmCache(service, windowDays, logger)
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*warmSchedule, func() {
		warmCache(service, windowDays, logger)
	})
	if err != nil {
		logger.Fatalf("Failed to schedule cache warming: %v", err)
	}

	c.Start()
	logger.Infof("Timberweb aggregator started, warming windows %v on schedule %q", windowDays, *warmSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("Aggregator stopped")
}

// warmCache recomputes the composite statistics for each window so API
// reads within the cache TTL never pay the aggregation cost.
func warmCache(service *stats.Service, windowDays []int, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, days := range windowDays {
		start := time.Now()
		composite := service.RefreshStatistics(ctx, days)
		logger.WithFields(logrus.Fields{
			"window_days": days,
			"page_views":  composite.TotalPageViews,
			"duration":    time.Since(start).Round(time.Millisecond),
		}).Info("Stats window warmed")
	}
}

func openStore(cfg storage.Config) (storage.RecordStore, error) {
	if cfg.Type == "postgres" {
		return postgres.New(cfg)
	}
	return sqlite.New(cfg)
}

func parseWindows(value string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(value, ",") {
		days, err := parsePositiveInt(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, days)
	}
	return out, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("window must be positive, got %d", n)
	}
	return n, nil
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
