package cache

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the interface for cache operations. Values are opaque bytes;
// GetJSON and SetJSON handle encoding.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// ClearByPattern removes every key containing substr and returns how many were removed.
	ClearByPattern(ctx context.Context, substr string) (int, error)
}

// GetJSON decodes the cached value for key into dst
func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON encodes value and stores it under key
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, found := l.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	return data, ok
}

// Set stores a value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// ClearByPattern removes every unexpired key containing substr
func (l *LocalCache) ClearByPattern(ctx context.Context, substr string) (int, error) {
	removed := 0
	for key := range l.cache.Items() {
		if strings.Contains(key, substr) {
			l.cache.Delete(key)
			removed++
		}
	}
	return removed, nil
}

// ItemCount returns the number of items held, including expired ones not yet cleaned up
func (l *LocalCache) ItemCount() int {
	return l.cache.ItemCount()
}

// RedisCache wraps go-redis for distributed caching
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Delete removes a value from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// ClearByPattern scans for prefixed keys containing substr and deletes them
func (r *RedisCache) ClearByPattern(ctx context.Context, substr string) (int, error) {
	match := escapeGlob(r.keyPrefix) + "*" + escapeGlob(substr) + "*"
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	return int(n), err
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TwoTierCache combines local and Redis cache
type TwoTierCache struct {
	l1    *LocalCache
	l2    *RedisCache
	l1TTL time.Duration
}

// NewTwoTierCache creates a cache with local L1 and Redis L2
func NewTwoTierCache(localTTL, cleanupInterval time.Duration, redisClient *redis.Client, keyPrefix string) *TwoTierCache {
	return &TwoTierCache{
		l1:    NewLocalCache(localTTL, cleanupInterval),
		l2:    NewRedisCache(redisClient, keyPrefix),
		l1TTL: localTTL,
	}
}

// Get checks L1 first, then L2
func (t *TwoTierCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := t.l1.Get(ctx, key); found {
		return val, true
	}

	if val, found := t.l2.Get(ctx, key); found {
		t.l1.Set(ctx, key, val, t.l1TTL)
		return val, true
	}

	return nil, false
}

// Set stores in both L1 and L2
func (t *TwoTierCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	l1TTL := ttl
	if ttl <= 0 || ttl > t.l1TTL {
		l1TTL = t.l1TTL
	}
	return t.l1.Set(ctx, key, value, l1TTL)
}

// Delete removes from both L1 and L2
func (t *TwoTierCache) Delete(ctx context.Context, key string) error {
	t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}

// ClearByPattern clears matching keys in both tiers. The count reflects L2.
func (t *TwoTierCache) ClearByPattern(ctx context.Context, substr string) (int, error) {
	t.l1.ClearByPattern(ctx, substr)
	return t.l2.ClearByPattern(ctx, substr)
}
