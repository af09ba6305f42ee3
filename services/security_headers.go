package services

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SecurityConfig controls the response headers set on every route. Empty
// fields are left out.
type SecurityConfig struct {
	CSPPolicy         string
	HSTSMaxAge        int64
	HSTSIncludeSub    bool
	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
	// Responses under NoStorePrefix get Cache-Control: no-store. Reports
	// are per-request and may include archive links.
	NoStorePrefix string
}

// DefaultSecurityConfig suits a JSON-only API.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSPPolicy:         "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
		HSTSMaxAge:        31536000,
		HSTSIncludeSub:    true,
		FrameOptions:      "DENY",
		ReferrerPolicy:    "no-referrer",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=(), payment=()",
		NoStorePrefix:     "/api/",
	}
}

type headerPair struct{ key, value string }

// SecurityHeaders sets a fixed header set computed once from the config.
type SecurityHeaders struct {
	headers       []headerPair
	noStorePrefix string
}

func NewSecurityHeaders(config *SecurityConfig) *SecurityHeaders {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	sh := &SecurityHeaders{noStorePrefix: config.NoStorePrefix}
	add := func(key, value string) {
		if value != "" {
			sh.headers = append(sh.headers, headerPair{key, value})
		}
	}
	add(fiber.HeaderContentSecurityPolicy, config.CSPPolicy)
	if config.HSTSMaxAge > 0 {
		hsts := "max-age=" + strconv.FormatInt(config.HSTSMaxAge, 10)
		if config.HSTSIncludeSub {
			hsts += "; includeSubDomains"
		}
		add(fiber.HeaderStrictTransportSecurity, hsts)
	}
	add(fiber.HeaderXFrameOptions, config.FrameOptions)
	add(fiber.HeaderReferrerPolicy, config.ReferrerPolicy)
	add(fiber.HeaderPermissionsPolicy, config.PermissionsPolicy)
	add(fiber.HeaderXContentTypeOptions, "nosniff")
	add("X-Permitted-Cross-Domain-Policies", "none")
	return sh
}

func (sh *SecurityHeaders) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, h := range sh.headers {
			c.Set(h.key, h.value)
		}
		if sh.noStorePrefix != "" && strings.HasPrefix(c.Path(), sh.noStorePrefix) {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		return c.Next()
	}
}
