package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdentityCache merkt sich aufgelöste Anker-IDs. Der Cache ist rein beratend:
// ein Fehlschlag führt nur zu einem zusätzlichen Lookup in der Datenbank.
type IdentityCache interface {
	Get(ctx context.Context, key string) (uint, bool)
	Set(ctx context.Context, key string, id uint)
}

// LocalCache gehört genau einem Worker und ist daher nicht synchronisiert.
type LocalCache map[string]uint

func NewLocalCache() LocalCache { return make(LocalCache) }

func (c LocalCache) Get(_ context.Context, key string) (uint, bool) {
	id, ok := c[key]
	return id, ok
}

func (c LocalCache) Set(_ context.Context, key string, id uint) { c[key] = id }

const redisKeyPrefix = "wikicite:anchor:"

// RedisCache teilt aufgelöste IDs zwischen Prozessen.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (uint, bool) {
	id, err := c.client.Get(ctx, redisKeyPrefix+key).Uint64()
	if err != nil {
		// redis.Nil oder Verbindungsfehler: beides ist ein Miss
		return 0, false
	}
	return uint(id), true
}

func (c *RedisCache) Set(ctx context.Context, key string, id uint) {
	c.client.Set(ctx, redisKeyPrefix+key, uint64(id), c.ttl)
}

// TieredCache fragt zuerst den lokalen, dann den gemeinsamen Cache.
type TieredCache struct {
	Local  IdentityCache
	Shared IdentityCache
}

func (c *TieredCache) Get(ctx context.Context, key string) (uint, bool) {
	if id, ok := c.Local.Get(ctx, key); ok {
		return id, true
	}
	if c.Shared == nil {
		return 0, false
	}
	id, ok := c.Shared.Get(ctx, key)
	if ok {
		c.Local.Set(ctx, key, id)
	}
	return id, ok
}

func (c *TieredCache) Set(ctx context.Context, key string, id uint) {
	c.Local.Set(ctx, key, id)
	if c.Shared != nil {
		c.Shared.Set(ctx, key, id)
	}
}
