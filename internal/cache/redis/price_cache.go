package redis

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floorline/floorline/internal/domain"
)

// PriceCache implements domain.PriceCache using plain string values under
// "fx:{currency}:{day}" keys. Historical rates never change once published,
// so entries carry a generous TTL purely to bound memory.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: 7 * 24 * time.Hour}
}

func priceKey(currency string, day time.Time) string {
	return "fx:" + currency + ":" + day.UTC().Format("2006-01-02")
}

// Get retrieves a cached conversion rate. It returns domain.ErrNotFound when
// no rate is cached for the currency/day pair.
func (pc *PriceCache) Get(ctx context.Context, currency string, day time.Time) (*big.Int, error) {
	val, err := pc.rdb.Get(ctx, priceKey(currency, day)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get rate %s: %w", currency, err)
	}

	rate, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return nil, fmt.Errorf("redis: parse rate %s: bad value %q", currency, val)
	}
	return rate, nil
}

// Set stores a conversion rate for the currency/day pair.
func (pc *PriceCache) Set(ctx context.Context, currency string, day time.Time, rate *big.Int) error {
	if err := pc.rdb.Set(ctx, priceKey(currency, day), rate.String(), pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set rate %s: %w", currency, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
