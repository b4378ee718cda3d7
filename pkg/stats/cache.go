package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// DefaultCacheTTL bounds how stale a cached statistics window may get.
// Dashboards tolerate a few minutes of lag; recomputation is the expensive
// part.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores computed statistics windows in Redis. All failures fall
// through to recomputation; a nil *Cache disables caching entirely.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCache wraps a Redis client. Returns nil when client is nil, which
// callers treat as caching disabled.
func NewCache(client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(windowDays int) string {
	return fmt.Sprintf("timberweb:stats:%dd", windowDays)
}

// Get returns the cached statistics for a window, or false on miss or any
// Redis error.
func (c *Cache) Get(ctx context.Context, windowDays int) (CompositeStatistics, bool) {
	if c == nil {
		return CompositeStatistics{}, false
	}
	data, err := c.client.Get(ctx, cacheKey(windowDays)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Stats cache read failed")
		}
		c.miss()
		return CompositeStatistics{}, false
	}
	var result CompositeStatistics
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.WithError(err).Warn("Stats cache entry corrupt, recomputing")
		c.miss()
		return CompositeStatistics{}, false
	}
	c.hit()
	return result, true
}

// Set stores a computed statistics window. Failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, windowDays int, result CompositeStatistics) {
	if c == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode stats for cache")
		return
	}
	if err := c.client.Set(ctx, cacheKey(windowDays), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Stats cache write failed")
	}
}

func (c *Cache) hit() {
	if c.metrics != nil {
		c.metrics.StatsCacheHitsTotal.Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.StatsCacheMissesTotal.Inc()
	}
}
