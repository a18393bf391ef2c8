package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floorline/floorline/internal/domain"
)

// collectionTTL bounds staleness of cached registry rows; floor values move
// constantly, so entries expire rather than being invalidated.
const collectionTTL = 5 * time.Minute

// CollectionCache implements domain.CollectionCache using JSON values under
// "collection:{contract}" keys.
type CollectionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCollectionCache creates a CollectionCache backed by the given Client.
func NewCollectionCache(c *Client) *CollectionCache {
	return &CollectionCache{rdb: c.Underlying(), ttl: collectionTTL}
}

func collectionKey(contract string) string {
	return "collection:" + contract
}

// Get retrieves a cached collection. It returns domain.ErrNotFound when the
// key does not exist or has expired.
func (cc *CollectionCache) Get(ctx context.Context, contract string) (domain.Collection, error) {
	data, err := cc.rdb.Get(ctx, collectionKey(contract)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Collection{}, domain.ErrNotFound
		}
		return domain.Collection{}, fmt.Errorf("redis: get collection %s: %w", contract, err)
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Collection{}, fmt.Errorf("redis: unmarshal collection %s: %w", contract, err)
	}
	return c, nil
}

// Set stores a collection with the cache TTL.
func (cc *CollectionCache) Set(ctx context.Context, c domain.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: marshal collection %s: %w", c.Contract, err)
	}
	if err := cc.rdb.Set(ctx, collectionKey(c.Contract), data, cc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set collection %s: %w", c.Contract, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CollectionCache = (*CollectionCache)(nil)
