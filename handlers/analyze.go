package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/yourusername/footprint/models"
	"github.com/yourusername/footprint/services"
)

// ReportAnalyzer is satisfied by *services.Analyzer.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, mediaURL string) (*services.Report, error)
}

type AnalyzeHandler struct {
	analyzer  ReportAnalyzer
	validator *validator.Validate
}

// NewAnalyzeHandler wires the analyze endpoint. Archiving and history are
// the analyzer's job; see services.ReportRecorder.
func NewAnalyzeHandler(analyzer ReportAnalyzer) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:  analyzer,
		validator: validator.New(),
	}
}

func (h *AnalyzeHandler) Preflight(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var req models.AnalyzeRequest
	// A malformed body is treated the same as a missing URL.
	_ = c.BodyParser(&req)
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	if req.MediaURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No mediaUrl"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mediaUrl"})
	}

	report, err := h.analyzer.Analyze(c.UserContext(), req.MediaURL)
	if err != nil {
		log.Printf("Analyze: critical failure for %s: %v", req.MediaURL, err)
		if report == nil {
			report = services.FailureReport(req.MediaURL, err)
		}
		// Failures keep HTTP 200 so the client always gets the envelope.
		return c.JSON(report)
	}

	return c.JSON(report)
}
