package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// Cache is the explicit point-lookup cache consulted at the start of
// lifecycle reads and evicted at the end of lifecycle writes. Writes evict
// exactly the affected keys, never a broader sweep.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, keys ...string)
}

// Key builders shared by the study and analysis services.

func StudyKey(id uuid.UUID) string { return "studies:" + id.String() }

func StudyCodeKey(code string) string { return "studies:code:" + code }

func PatientKey(id uuid.UUID) string { return "patients:" + id.String() }

func PatientCodeKey(code string) string { return "patients:code:" + code }

func SafetyReportKey(id uuid.UUID) string { return "safety-reports:" + id.String() }

func EfficacyReportKey(id uuid.UUID, measurementType string) string {
	return "efficacy-reports:" + id.String() + ":" + measurementType
}

// RedisCache backs the cache with Redis. Failures degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).WithField("key", key).Warn("cache get failed")
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.WithError(err).Warn("cache delete failed")
	}
}

// MemoryCache is a process-local map cache used in tests and as the
// fallback when Redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}
