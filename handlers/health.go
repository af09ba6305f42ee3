package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/yourusername/footprint/services"
)

type HealthHandler struct {
	provider string
	history  bool
	limiter  *services.RateLimiter
}

func NewHealthHandler(provider string, history bool, limiter *services.RateLimiter) *HealthHandler {
	if provider == "" {
		provider = "none"
	}
	return &HealthHandler{provider: provider, history: history, limiter: limiter}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":          "ok",
		"search_provider": h.provider,
		"history":         h.history,
	}
	if h.limiter != nil {
		resp["rate_limit"] = h.limiter.GetStats()
	}
	return c.JSON(resp)
}
