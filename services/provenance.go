package services

import (
	"bytes"
	"log"
	"regexp"
	"strings"

	"github.com/dsoprea/go-exif/v3"
)

// Provenance describes an AI provenance marker found in the media bytes.
type Provenance struct {
	Provider string `json:"provider"` // e.g. "Midjourney", "OpenAI", "Adobe Firefly", "Unknown C2PA"
	Method   string `json:"method"`   // "c2pa", "exif", "xmp" or "binary"
	Details  string `json:"details"`
}

var (
	xmpRegex         = regexp.MustCompile(`(?is)<x:xmpmeta[\s\S]*?</x:xmpmeta>`)
	guidRegex        = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	c2paSniffRegex   = regexp.MustCompile(`(?i)(c2pa|jumbf|contentcredentials)`)
	iptcTrainedMedia = "http://cv.iptc.org/newscodes/digitalsourcetype/trainedalgorithmicmedia"
)

// ExtractXMP returns the first XMP packet found in data, or nil.
func ExtractXMP(data []byte) []byte {
	if m := xmpRegex.Find(data); len(m) > 0 {
		return m
	}
	return nil
}

// DetectProvenance looks for AI provenance markers in the leading bytes of a
// media file. Only the supplied prefix is inspected.
func DetectProvenance(data []byte) (Provenance, bool) {
	if len(data) == 0 {
		return Provenance{}, false
	}
	xmp := ExtractXMP(data)

	if c2paSniffRegex.Match(data) {
		provider := classifyC2PAProvider(xmp)
		if provider == "" {
			provider = "Unknown C2PA"
		}
		return Provenance{Provider: provider, Method: "c2pa", Details: "C2PA/JUMBF markers present"}, true
	}
	if p, ok := detectFromEXIF(data); ok {
		return p, true
	}
	if p, ok := detectFromXMP(xmp); ok {
		return p, true
	}
	return detectFromBinaryText(data)
}

func classifyC2PAProvider(xmp []byte) string {
	if len(xmp) == 0 {
		return ""
	}
	s := strings.ToLower(string(xmp))
	switch {
	case strings.Contains(s, "openai") || strings.Contains(s, "dall-e") || strings.Contains(s, "dalle"):
		return "OpenAI"
	case strings.Contains(s, "adobe") && strings.Contains(s, "firefly"):
		return "Adobe Firefly"
	case strings.Contains(s, "made with google ai") || strings.Contains(s, "google ai"):
		return "Google Imagen"
	}
	return ""
}

func detectFromEXIF(data []byte) (Provenance, bool) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		// No EXIF block is the common case.
		return Provenance{}, false
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		log.Printf("Provenance: EXIF parsing failed: %v", err)
		return Provenance{}, false
	}

	for _, e := range entries {
		tag := strings.TrimSpace(e.TagName)
		val := strings.TrimSpace(e.Formatted)
		low := strings.ToLower(val)

		switch {
		case strings.EqualFold(tag, "Software"):
			if provider := softwareProvider(low); provider != "" {
				return Provenance{Provider: provider, Method: "exif", Details: val}, true
			}
		case strings.EqualFold(tag, "DigitalSourceType"):
			if strings.EqualFold(val, iptcTrainedMedia) {
				return Provenance{Provider: "AI (IPTC Trained Media)", Method: "exif", Details: val}, true
			}
		case strings.EqualFold(tag, "UserComment"), strings.EqualFold(tag, "ImageDescription"):
			if containsAnyFold(low, []string{"negative prompt", "negative_prompt", "sampler", "cfg scale", "sui_image_params"}) {
				return Provenance{Provider: "Stable Diffusion", Method: "exif", Details: tag + " contains generation params"}, true
			}
		}
	}
	return Provenance{}, false
}

func softwareProvider(low string) string {
	switch {
	case strings.Contains(low, "midjourney"):
		return "Midjourney"
	case strings.Contains(low, "dall-e") || strings.Contains(low, "dalle") || strings.Contains(low, "openai"):
		return "OpenAI"
	case strings.Contains(low, "stable diffusion") || strings.Contains(low, "sdxl"):
		return "Stable Diffusion"
	case strings.Contains(low, "firefly"):
		return "Adobe Firefly"
	case strings.Contains(low, "flux") || strings.Contains(low, "black forest labs"):
		return "FLUX"
	}
	return ""
}

func detectFromXMP(xmp []byte) (Provenance, bool) {
	if len(xmp) == 0 {
		return Provenance{}, false
	}
	s := strings.ToLower(string(xmp))
	trained := strings.Contains(s, iptcTrainedMedia)

	switch {
	case trained && guidRegex.Match(xmp):
		return Provenance{Provider: "Midjourney", Method: "xmp", Details: "IPTC trained media + GUID"}, true
	case trained && strings.Contains(s, "made with google ai"):
		return Provenance{Provider: "Google Imagen", Method: "xmp", Details: "IPTC + Credit"}, true
	case strings.Contains(s, "adobe") && strings.Contains(s, "firefly"):
		return Provenance{Provider: "Adobe Firefly", Method: "xmp", Details: "XMP mentions Adobe Firefly"}, true
	case strings.Contains(s, "openai") || strings.Contains(s, "dall-e"):
		return Provenance{Provider: "OpenAI", Method: "xmp", Details: "XMP mentions OpenAI/DALL-E"}, true
	case strings.Contains(s, ">prompt<") && strings.Contains(s, ">workflow<"):
		return Provenance{Provider: "ComfyUI", Method: "xmp", Details: "Prompt + Workflow"}, true
	case trained:
		return Provenance{Provider: "AI (IPTC Trained Media)", Method: "xmp", Details: iptcTrainedMedia}, true
	}
	return Provenance{}, false
}

// detectFromBinaryText scans PNG text chunks and similar plain-text blobs.
func detectFromBinaryText(data []byte) (Provenance, bool) {
	switch {
	case bytes.Contains(data, []byte("\"filename_prefix\": \"ComfyUI\"")) ||
		bytes.Contains(data, []byte("\"filename_prefix\":\"ComfyUI\"")):
		return Provenance{Provider: "ComfyUI", Method: "binary", Details: "ComfyUI workflow chunk"}, true
	case bytes.Contains(data, []byte("tEXtparameters")) || bytes.Contains(data, []byte("iTXtparameters")):
		return Provenance{Provider: "Stable Diffusion", Method: "binary", Details: "A1111 parameters chunk"}, true
	case bytes.Contains(data, []byte("Grok Image Prompt")):
		return Provenance{Provider: "Grok", Method: "binary", Details: "Grok prompt fields"}, true
	}
	return Provenance{}, false
}

func containsAnyFold(haystack string, needles []string) bool {
	hs := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(hs, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
