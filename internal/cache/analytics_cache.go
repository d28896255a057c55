// Package cache keeps computed analytics in Redis so repeated dashboard
// requests skip the snapshot load. A cache without an address is a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kape-platform/internal/analytics"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

const keyPrefix = "kape:analytics:"

// PortfolioKey is the key of the admin portfolio analytics
func PortfolioKey() string {
	return keyPrefix + "portfolio"
}

// FarmKey is the key of one farm's analytics
func FarmKey(farmID string) string {
	return keyPrefix + "farm:" + farmID
}

// Config configures the Redis connection
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// AnalyticsCache stores analytics results as JSON with a TTL
type AnalyticsCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalyticsCache creates a cache. The connection is lazy; use Ping to check it.
func NewAnalyticsCache(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsCache {
	c := &AnalyticsCache{
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metricsCollector,
	}
	if cfg.Addr != "" {
		c.client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	return c
}

// Enabled reports whether a Redis address was configured
func (c *AnalyticsCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping verifies the Redis connection
func (c *AnalyticsCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *AnalyticsCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// GetPortfolio returns cached portfolio analytics
func (c *AnalyticsCache) GetPortfolio(ctx context.Context) (*analytics.PortfolioAnalytics, bool) {
	var out analytics.PortfolioAnalytics
	if !c.get(ctx, PortfolioKey(), &out) {
		return nil, false
	}
	return &out, true
}

// SetPortfolio caches portfolio analytics
func (c *AnalyticsCache) SetPortfolio(ctx context.Context, v *analytics.PortfolioAnalytics) {
	c.set(ctx, PortfolioKey(), v)
}

// GetFarm returns cached analytics for one farm
func (c *AnalyticsCache) GetFarm(ctx context.Context, farmID string) (*analytics.FarmAnalytics, bool) {
	var out analytics.FarmAnalytics
	if !c.get(ctx, FarmKey(farmID), &out) {
		return nil, false
	}
	return &out, true
}

// SetFarm caches analytics for one farm
func (c *AnalyticsCache) SetFarm(ctx context.Context, farmID string, v *analytics.FarmAnalytics) {
	c.set(ctx, FarmKey(farmID), v)
}

// Invalidate drops every cached analytics entry. Called after ingestion.
func (c *AnalyticsCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan analytics keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete analytics keys: %w", err)
	}

	c.logger.Info(ctx, "[CACHE_INVALIDATE] Analytics cache cleared", logging.Fields{
		"keys": len(keys),
	})
	return nil
}

// get reads a key into dest. Redis errors are logged and reported as a miss.
func (c *AnalyticsCache) get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.metrics.RecordCache("error")
			c.logger.Warn(ctx, "[CACHE_GET_ERROR] Cache read failed", logging.Fields{
				"key":   key,
				"error": err.Error(),
			})
			return false
		}
		c.metrics.RecordCache("miss")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.metrics.RecordCache("error")
		c.logger.Warn(ctx, "[CACHE_DECODE_ERROR] Discarding undecodable entry", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}

	c.metrics.RecordCache("hit")
	return true
}

func (c *AnalyticsCache) set(ctx context.Context, key string, v interface{}) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn(ctx, "[CACHE_ENCODE_ERROR] Failed to encode analytics", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.metrics.RecordCache("error")
		c.logger.Warn(ctx, "[CACHE_SET_ERROR] Cache write failed", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}
