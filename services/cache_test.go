package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(url string) *Report {
	return &Report{
		ID:       uuid.New(),
		Service:  "osint-dual-engine-v3",
		MediaURL: url,
		Footprint: Footprint{
			TotalMatches:    1,
			AIGeneratorName: "Sora (Filename Trace)",
			Matches:         []Match{{SourceName: "s", Title: "t", URL: "https://s.example", PostedTime: "Online Discovery"}},
			Method:          "Visual Fingerprint",
		},
		Timeline:     &TimelineIntel{FirstSeen: "Found Publicly", LastSeen: "Just Now"},
		MediaProfile: &MediaProfile{Format: FormatJPEG, Width: 640, Height: 512},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewMemoryCache(time.Minute, 10)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	r := sampleReport("https://x.example/a.png")
	require.NoError(t, c.Set(ctx, r.MediaURL, r))

	got, ok := c.Get(ctx, r.MediaURL)
	require.True(t, ok)
	assert.Equal(t, r.ID, got.ID)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, r.MediaURL)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheEviction(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewMemoryCache(time.Minute, 2)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", sampleReport("a")))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", sampleReport("b")))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", sampleReport("c")))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok := c.Get(ctx, "https://x.example/missing.png")
	assert.False(t, ok)

	r := sampleReport("https://x.example/a.jpg")
	require.NoError(t, c.Set(ctx, r.MediaURL, r))
	assert.True(t, mr.Exists(redisKey(r.MediaURL)))

	got, ok := c.Get(ctx, r.MediaURL)
	require.True(t, ok)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Footprint, got.Footprint)
	assert.Equal(t, FormatJPEG, got.MediaProfile.Format)
	assert.Equal(t, 640, got.MediaProfile.Width)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, r.MediaURL)
	assert.False(t, ok)
}

func TestRedisCacheDropsGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	require.NoError(t, mr.Set(redisKey("u"), "not json"))
	_, ok := c.Get(context.Background(), "u")
	assert.False(t, ok)
}

func TestNewReportCache(t *testing.T) {
	c, err := NewReportCache(CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, noopCache{}, c)

	c, err = NewReportCache(CacheConfig{TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	mr := miniredis.RunT(t)
	c, err = NewReportCache(CacheConfig{TTL: time.Minute, RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)

	_, err = NewReportCache(CacheConfig{TTL: time.Minute, RedisURL: "::nope"})
	assert.Error(t, err)
}
