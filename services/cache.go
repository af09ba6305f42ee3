package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache stores finished reports keyed by media URL.
type ReportCache interface {
	Get(ctx context.Context, mediaURL string) (*Report, bool)
	Set(ctx context.Context, mediaURL string, report *Report) error
}

// NewReportCache returns a Redis-backed cache when config.RedisURL is set and
// an in-process cache otherwise.
func NewReportCache(config CacheConfig) (ReportCache, error) {
	if config.TTL <= 0 {
		return noopCache{}, nil
	}
	if config.RedisURL == "" {
		return NewMemoryCache(config.TTL, config.MaxEntries), nil
	}
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), config.TTL), nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Report, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *Report) error  { return nil }

// ----- in-memory cache -----

type memoryEntry struct {
	report  *Report
	expires time.Time
}

// MemoryCache is a small threadsafe TTL cache. When full, the entry closest
// to expiry is evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, mediaURL string) (*Report, bool) {
	c.mu.RLock()
	e, ok := c.entries[mediaURL]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		// Re-check in case another goroutine refreshed the entry.
		if cur, ok := c.entries[mediaURL]; ok && c.now().After(cur.expires) {
			delete(c.entries, mediaURL)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.report, true
}

func (c *MemoryCache) Set(_ context.Context, mediaURL string, report *Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[mediaURL]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[mediaURL] = memoryEntry{report: report, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	delete(c.entries, oldestKey)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ----- redis cache -----

const redisKeyPrefix = "footprint:report:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(mediaURL string) string {
	sum := sha256.Sum256([]byte(mediaURL))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, mediaURL string) (*Report, bool) {
	data, err := c.client.Get(ctx, redisKey(mediaURL)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Cache: redis get failed: %v", err)
		}
		return nil, false
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		log.Printf("Cache: dropping undecodable entry: %v", err)
		return nil, false
	}
	return &report, true
}

func (c *RedisCache) Set(ctx context.Context, mediaURL string, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(mediaURL), data, c.ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
