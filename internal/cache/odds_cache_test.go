package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-insight/internal/models"
)

func sampleOdds() []models.OddsEntry {
	odds := decimal.RequireFromString("2.5")
	pop := 1
	return []models.OddsEntry{{PostPosition: 1, Popularity: &pop, WinOdds: &odds}}
}

func TestOddsCacheGetMiss(t *testing.T) {
	c := NewOddsCache(time.Hour, 10)
	defer c.Clear()

	odds, ok := c.Get(context.Background(), "2505020811")
	assert.False(t, ok)
	assert.Nil(t, odds)

	hits, misses, ratio := c.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.0, ratio)
}

func TestOddsCacheSetAndGet(t *testing.T) {
	c := NewOddsCache(time.Hour, 10)
	ctx := context.Background()

	c.Set(ctx, "2505020811", sampleOdds())
	odds, ok := c.Get(ctx, "2505020811")
	require.True(t, ok)
	require.Len(t, odds, 1)
	assert.Equal(t, 1, odds[0].PostPosition)

	odds[0].PostPosition = 99
	again, ok := c.Get(ctx, "2505020811")
	require.True(t, ok)
	assert.Equal(t, 1, again[0].PostPosition, "callers get a copy")

	hits, _, ratio := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, 1.0, ratio)
}

func TestOddsCacheExpiry(t *testing.T) {
	c := NewOddsCache(20*time.Millisecond, 10)
	ctx := context.Background()

	c.Set(ctx, "r", sampleOdds())
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get(ctx, "r")
	assert.False(t, ok)
}

func TestOddsCacheDisabled(t *testing.T) {
	c := NewOddsCache(0, 10)
	ctx := context.Background()

	c.Set(ctx, "r", sampleOdds())
	_, ok := c.Get(ctx, "r")
	assert.False(t, ok)
	assert.Equal(t, 0, c.ItemCount())
}

func TestOddsCacheMaxSize(t *testing.T) {
	c := NewOddsCache(time.Hour, 1)
	ctx := context.Background()

	c.Set(ctx, "a", sampleOdds())
	c.Set(ctx, "b", sampleOdds())
	assert.Equal(t, 1, c.ItemCount())

	c.Invalidate(ctx, "a")
	c.Set(ctx, "b", sampleOdds())
	_, ok := c.Get(ctx, "b")
	assert.True(t, ok)
}
