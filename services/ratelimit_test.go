package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiterConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEntries:      100,
		CleanupInterval: 100 * time.Millisecond,
		EntryTTL:        1 * time.Second,
		TrustedProxies:  []string{"0.0.0.0", "::1"},
		Capacity:        2,
		Refill:          time.Minute,
	}
}

func TestRateLimiterBasics(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	allowed, _ := limiter.allowRequest("192.168.1.1", 2, time.Minute)
	assert.True(t, allowed, "First request should be allowed")
	allowed, _ = limiter.allowRequest("192.168.1.1", 2, time.Minute)
	assert.True(t, allowed, "Second request should be allowed")

	allowed, retry := limiter.allowRequest("192.168.1.1", 2, time.Minute)
	assert.False(t, allowed, "Third request should be blocked")
	assert.Greater(t, retry, 50*time.Second)

	allowed, _ = limiter.allowRequest("192.168.1.2", 2, time.Minute)
	assert.True(t, allowed, "Different IP should be allowed")
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("test")
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRateLimiterForwardedFromTrustedProxy(t *testing.T) {
	// app.Test connections report 0.0.0.0 as the peer.
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("203.0.113.7, 10.0.0.1"))
	assert.Equal(t, fiber.StatusOK, send("203.0.113.7"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("203.0.113.7"))
	assert.Equal(t, fiber.StatusOK, send("198.51.100.9"), "each forwarded client has its own bucket")
}

func TestRateLimiterIgnoresForwardedFromUntrustedPeer(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.TrustedProxies = nil
	limiter := NewRateLimiter(cfg)
	defer limiter.Stop()

	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := make([]int, 0, 3)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := app.Test(req)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiterTokenRefill(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	ip := "192.168.1.3"
	for i := 0; i < 2; i++ {
		allowed, _ := limiter.allowRequest(ip, 2, 50*time.Millisecond)
		assert.True(t, allowed, "Request %d should be allowed", i+1)
	}
	allowed, _ := limiter.allowRequest(ip, 2, 50*time.Millisecond)
	assert.False(t, allowed, "Request should be blocked when tokens are exhausted")

	time.Sleep(60 * time.Millisecond)

	allowed, _ = limiter.allowRequest(ip, 2, 50*time.Millisecond)
	assert.True(t, allowed, "Request should be allowed after token refill")
}

func TestRateLimiterStats(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	limiter.allowRequest("192.168.1.4", 2, time.Minute)
	limiter.allowRequest("192.168.1.4", 2, time.Minute)
	limiter.allowRequest("192.168.1.4", 2, time.Minute)

	stats := limiter.GetStats()
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.DeniedCount)
	assert.GreaterOrEqual(t, stats.Uptime, time.Duration(0))
}

func TestRateLimiterEvictsLeastRecentlyUsed(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.MaxEntries = 2
	limiter := NewRateLimiter(cfg)
	defer limiter.Stop()

	limiter.allowRequest("10.0.0.1", 2, time.Minute)
	time.Sleep(time.Millisecond)
	limiter.allowRequest("10.0.0.2", 2, time.Minute)
	time.Sleep(time.Millisecond)
	limiter.allowRequest("10.0.0.3", 2, time.Minute)

	stats := limiter.GetStats()
	assert.Equal(t, int64(2), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.EvictedCount)
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "192.168.1.1", normalizeIP("192.168.1.1"))
	assert.Equal(t, "2001:db8::1", normalizeIP("2001:0db8:0000::1"))
	assert.Equal(t, "", normalizeIP(""))
	assert.Equal(t, "", normalizeIP("invalid"))
	assert.Equal(t, "", normalizeIP("999.999.999.999"))
}

func TestRateLimiterCleanup(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.CleanupInterval = 50 * time.Millisecond
	cfg.EntryTTL = 100 * time.Millisecond
	limiter := NewRateLimiter(cfg)
	defer limiter.Stop()

	limiter.allowRequest("10.1.0.1", 1, time.Minute)
	limiter.allowRequest("10.1.0.2", 1, time.Minute)
	limiter.allowRequest("10.1.0.3", 1, time.Minute)

	time.Sleep(250 * time.Millisecond)

	stats := limiter.GetStats()
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Greater(t, stats.CleanupCount, int64(0))
}
