// Package cache provides in-memory caching of live odds.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
)

// OddsCache keeps recently fetched odds per race ID. A zero TTL disables
// caching: every Get misses and Set is a no-op.
type OddsCache struct {
	cache     *gocache.Cache
	ttl       time.Duration
	maxSize   int
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewOddsCache creates a new odds cache
func NewOddsCache(ttl time.Duration, maxSize int) *OddsCache {
	cleanup := ttl * 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &OddsCache{
		cache:   gocache.New(ttl, cleanup),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns a copy of the cached odds of a race.
func (c *OddsCache) Get(ctx context.Context, raceID string) ([]models.OddsEntry, bool) {
	if c.ttl > 0 {
		if v, found := c.cache.Get(raceID); found {
			if odds, ok := v.([]models.OddsEntry); ok {
				c.hitCount.Add(1)
				c.updateMetrics()
				return append([]models.OddsEntry(nil), odds...), true
			}
		}
	}
	c.missCount.Add(1)
	c.updateMetrics()
	return nil, false
}

// Set stores odds for a race.
func (c *OddsCache) Set(ctx context.Context, raceID string, odds []models.OddsEntry) {
	if c.ttl <= 0 {
		return
	}
	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
		if c.cache.ItemCount() >= c.maxSize {
			return
		}
	}
	c.cache.Set(raceID, append([]models.OddsEntry(nil), odds...), c.ttl)
}

// Invalidate drops the cached odds of a race
func (c *OddsCache) Invalidate(ctx context.Context, raceID string) {
	c.cache.Delete(raceID)
}

// Clear flushes the entire cache
func (c *OddsCache) Clear() {
	c.cache.Flush()
	c.hitCount.Store(0)
	c.missCount.Store(0)
}

// Stats returns cache statistics
func (c *OddsCache) Stats() (hits, misses uint64, ratio float64) {
	hits = c.hitCount.Load()
	misses = c.missCount.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (c *OddsCache) ItemCount() int {
	return c.cache.ItemCount()
}

func (c *OddsCache) updateMetrics() {
	_, _, ratio := c.Stats()
	metrics.UpdateOddsCacheHitRatio(ratio)
}
