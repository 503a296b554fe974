package cache

import (
	"context"
	"strconv"
	"time"
)

const (
	// priceCachePrefix is the Redis key prefix for price lookups,
	// keyed by normalized origin.
	priceCachePrefix = "price:"
	// priceCacheTTL bounds price staleness. Prices change through the
	// admin subsystem, so a short TTL is enough.
	priceCacheTTL = 60 * time.Second
)

// GetPrice returns the cached USD price for a normalized origin.
// The second return is false on a miss.
func (c *Cache) GetPrice(ctx context.Context, origin string) (float64, bool) {
	val, err := c.client.Get(ctx, priceCachePrefix+origin).Result()
	if err != nil {
		return 0, false
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		// Corrupted entry - treat as miss
		return 0, false
	}
	return price, true
}

// SetPrice caches the USD price for a normalized origin.
func (c *Cache) SetPrice(ctx context.Context, origin string, priceUSD float64) error {
	val := strconv.FormatFloat(priceUSD, 'f', -1, 64)
	return c.client.Set(ctx, priceCachePrefix+origin, val, priceCacheTTL).Err()
}
