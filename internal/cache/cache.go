// Package cache is the time-boxed cache of expensive aggregates. It is
// fail-open everywhere: a broken backend degrades to recomputation, never to
// an error surfaced to the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/metrics"
)

// Cache wraps a key-value store with serialization and tenant-scoped
// invalidation.
type Cache struct {
	store   kv.Store
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a cache with the given default TTL.
func New(store kv.Store, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	return &Cache{store: store, ttl: ttl, logger: logger, metrics: m}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrCompute returns the cached value for key if present and unexpired,
// otherwise invokes compute and stores its result with the given TTL. Read
// and deserialization errors count as misses; write errors are logged and
// swallowed. Only compute itself can fail the call.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, err := c.store.Get(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			if c.metrics != nil {
				c.metrics.RecordCacheHit()
			}
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, kv.ErrNotFound) {
		c.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}

	return value, nil
}

// InvalidateTenant drops every cached aggregate for a tenant. Called when new
// metric records are ingested or on a manual cache bust. Best-effort: a
// failed invalidation is logged and swallowed, since serving a stale
// aggregate beats failing the ingestion pipeline.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID string) {
	deleted, err := c.store.DeletePrefix(ctx, TenantPrefix(tenantID))
	if err != nil {
		c.logger.Warn("cache invalidation failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return
	}
	if c.metrics != nil {
		c.metrics.RecordCacheInvalidation(deleted)
	}
	c.logger.Debug("cache invalidated",
		zap.String("tenant_id", tenantID),
		zap.Int("deleted", deleted),
	)
}
