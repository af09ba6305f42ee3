package services

import (
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig configures the per-client limiter on the analysis routes.
type RateLimitConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	EntryTTL        time.Duration `yaml:"entry_ttl"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
	EnableDebug     bool          `yaml:"enable_debug"`
	// Capacity requests are allowed per Refill window.
	Capacity int           `yaml:"capacity"`
	Refill   time.Duration `yaml:"refill"`
}

// RateLimitStats reports limiter activity for /healthz.
type RateLimitStats struct {
	TotalEntries    int64         `json:"total_entries"`
	EvictedCount    int64         `json:"evicted_count"`
	CleanupCount    int64         `json:"cleanup_count"`
	DeniedCount     int64         `json:"denied_count"`
	LastCleanupTime time.Time     `json:"last_cleanup_time"`
	Uptime          time.Duration `json:"uptime"`
}

type rlEntry struct {
	tokens   int
	refillAt time.Time
	lastUsed time.Time
}

// RateLimiter is a fixed-window token bucket keyed by client IP. Idle entries
// are swept in the background and the least recently used entry is evicted
// once MaxEntries is reached.
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*rlEntry
	config      RateLimitConfig
	stats       RateLimitStats
	startTime   time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
	trusted     map[string]bool
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = 30 * time.Minute
	}
	if config.Capacity <= 0 {
		config.Capacity = 30
	}
	if config.Refill <= 0 {
		config.Refill = 1 * time.Minute
	}

	trusted := make(map[string]bool, len(config.TrustedProxies))
	for _, p := range config.TrustedProxies {
		if ip := normalizeIP(p); ip != "" {
			trusted[ip] = true
		}
	}

	rl := &RateLimiter{
		entries:     make(map[string]*rlEntry),
		config:      config,
		startTime:   time.Now(),
		stopCleanup: make(chan struct{}),
		trusted:     trusted,
	}
	go rl.cleanupLoop()
	return rl
}

// Middleware limits each client to the configured capacity per refill window.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return rl.MiddlewareWith(rl.config.Capacity, rl.config.Refill)
}

// MiddlewareWith is Middleware with an explicit budget, for routes that need
// a tighter limit than the default.
func (rl *RateLimiter) MiddlewareWith(capacity int, refill time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := rl.clientIP(c)
		if ip == "" {
			rl.debugf("RateLimiter: unable to determine client IP, allowing request")
			return c.Next()
		}

		allowed, retryAfter := rl.allowRequest(ip, capacity, refill)
		if !allowed {
			rl.debugf("RateLimiter: limit exceeded for %s", ip)
			c.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

// allowRequest takes one token for ip. When denied it also returns how long
// until the bucket refills.
func (rl *RateLimiter) allowRequest(ip string, capacity int, refill time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[ip]
	if !exists || now.After(entry.refillAt) {
		if !exists && len(rl.entries) >= rl.config.MaxEntries {
			rl.evictLRU()
		}
		entry = &rlEntry{tokens: capacity, refillAt: now.Add(refill)}
		rl.entries[ip] = entry
	}
	entry.lastUsed = now

	if entry.tokens <= 0 {
		rl.stats.DeniedCount++
		return false, entry.refillAt.Sub(now)
	}
	entry.tokens--
	return true, 0
}

// clientIP returns the peer address, or the leftmost forwarded address when
// the peer is a trusted proxy.
func (rl *RateLimiter) clientIP(c *fiber.Ctx) string {
	peer := normalizeIP(c.IP())
	if peer == "" || !rl.trusted[peer] {
		return peer
	}
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := normalizeIP(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	if ip := normalizeIP(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

// normalizeIP returns the canonical form of ip, or "" if it does not parse.
func normalizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	return parsed.String()
}

func (rl *RateLimiter) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, e := range rl.entries {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = key, e.lastUsed
		}
	}
	if oldestKey != "" {
		delete(rl.entries, oldestKey)
		rl.stats.EvictedCount++
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, e := range rl.entries {
		if now.Sub(e.lastUsed) > rl.config.EntryTTL {
			delete(rl.entries, key)
			expired++
		}
	}
	rl.stats.CleanupCount++
	rl.stats.LastCleanupTime = now
	if expired > 0 {
		rl.debugf("RateLimiter: cleaned up %d expired entries", expired)
	}
}

func (rl *RateLimiter) GetStats() RateLimitStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	stats := rl.stats
	stats.TotalEntries = int64(len(rl.entries))
	stats.Uptime = time.Since(rl.startTime)
	return stats
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *RateLimiter) debugf(format string, args ...interface{}) {
	if rl.config.EnableDebug {
		log.Printf(format, args...)
	}
}
