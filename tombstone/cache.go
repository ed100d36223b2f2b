package tombstone

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "sync-ledger:"

// redisCache remembers positive answers only. Absence in the cache always falls through to the backend.
type redisCache struct {
	rdb    *redis.Client
	prefix string
}

const (
	cacheDeletedEntities   = "deleted-entities"
	cacheTombstonedSources = "tombstoned-sources"
	cacheSyncedSources     = "synced-sources"
)

func (c *redisCache) key(set string) string {
	return c.prefix + set
}

func (c *redisCache) has(ctx context.Context, set, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, c.key(set), member).Result()
}

func (c *redisCache) add(ctx context.Context, set, member string) error {
	return c.rdb.SAdd(ctx, c.key(set), member).Err()
}

func (c *redisCache) clear(ctx context.Context) error {
	return c.rdb.Del(ctx,
		c.key(cacheDeletedEntities),
		c.key(cacheTombstonedSources),
		c.key(cacheSyncedSources),
	).Err()
}
