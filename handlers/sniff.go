package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/yourusername/footprint/services"
)

// maxUploadSniff bounds how much of an uploaded file is inspected.
const maxUploadSniff = 1 << 20

var errNoProber = errors.New("media probe is disabled")

type MediaProbe interface {
	Probe(ctx context.Context, mediaURL string) (*services.MediaProfile, error)
}

type SniffHandler struct {
	prober MediaProbe
}

func NewSniffHandler(prober MediaProbe) *SniffHandler {
	return &SniffHandler{prober: prober}
}

type UploadSniffResponse struct {
	Recognized bool                 `json:"recognized"`
	Format     services.ImageFormat `json:"format"`
	Width      uint32               `json:"width"`
	Height     uint32               `json:"height"`
	BytesRead  int                  `json:"bytes_read"`
	Provenance *services.Provenance `json:"provenance,omitempty"`
	Exif       map[string]string    `json:"exif,omitempty"`
}

// SniffURL reads the header of a remote image: GET /api/sniff?url=...
func (h *SniffHandler) SniffURL(c *fiber.Ctx) error {
	mediaURL := strings.TrimSpace(c.Query("url"))
	if mediaURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No url"})
	}
	if h.prober == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": errNoProber.Error()})
	}
	profile, err := h.prober.Probe(c.UserContext(), mediaURL)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedScheme) || errors.Is(err, services.ErrForbiddenAddress) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(profile)
}

// SniffUpload reads the header of an uploaded file (multipart field "image").
// Only the first MiB is inspected.
func (h *SniffHandler) SniffUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No image file provided"})
	}
	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open uploaded file"})
	}
	defer src.Close()

	head, err := io.ReadAll(io.LimitReader(src, maxUploadSniff))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read uploaded file"})
	}

	resp := UploadSniffResponse{BytesRead: len(head)}
	if header, ok := services.SniffDimensions(head); ok {
		resp.Recognized = true
		resp.Format = header.Format
		resp.Width = header.Width
		resp.Height = header.Height
	}
	if prov, ok := services.DetectProvenance(head); ok {
		resp.Provenance = &prov
	}
	resp.Exif = services.ExifSummary(head)
	return c.JSON(resp)
}
