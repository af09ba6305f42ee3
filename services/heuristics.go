package services

import (
	"net/url"
	"path"
	"strings"
)

// Heuristics holds the ordered rule lists used to guess a generator. It is
// built once from Config and only read afterwards.
type Heuristics struct {
	generators  []GeneratorRule
	resolutions []ResolutionRule
	ignored     []string
}

func NewHeuristics(config *Config) *Heuristics {
	h := &Heuristics{
		resolutions: config.ResolutionRules,
		ignored:     lowerAll(config.IgnoredDomains),
	}
	for _, g := range config.Generators {
		h.generators = append(h.generators, GeneratorRule{Name: g.Name, Keys: lowerAll(g.Keys)})
	}
	return h
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MediaFilename returns the lowercased last path segment of a media URL.
// Query strings and fragments are not part of the name.
func MediaFilename(mediaURL string) string {
	if u, err := url.Parse(mediaURL); err == nil && u.Path != "" {
		if strings.HasSuffix(u.Path, "/") {
			return ""
		}
		base := path.Base(u.Path)
		if base == "/" || base == "." {
			return ""
		}
		return strings.ToLower(base)
	}
	parts := strings.Split(mediaURL, "/")
	return strings.ToLower(parts[len(parts)-1])
}

// FilenameQuery turns "midjourney_v5-cat.final.jpg" into "midjourney v5 cat".
func FilenameQuery(filename string) string {
	stem, _, _ := strings.Cut(filename, ".")
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, stem)
}

func (h *Heuristics) matches(rule GeneratorRule, text string) bool {
	for _, k := range rule.Keys {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// MatchFilename returns the generator traced from the filename. When several
// rules match, the last one wins.
func (h *Heuristics) MatchFilename(filename string) (string, bool) {
	name := strings.ToLower(filename)
	found := ""
	for _, g := range h.generators {
		if h.matches(g, name) {
			found = g.Name
		}
	}
	if found == "" {
		return "", false
	}
	return found + " (Filename Trace)", true
}

// MatchContext returns the first generator mentioned in search result text.
func (h *Heuristics) MatchContext(text string) (string, bool) {
	text = strings.ToLower(text)
	for _, g := range h.generators {
		if h.matches(g, text) {
			return g.Name + " (Context Match)", true
		}
	}
	return "", false
}

// MatchResolution returns the first rule whose size is within tolerance.
func (h *Heuristics) MatchResolution(width, height int) (string, bool) {
	if width <= 0 || height <= 0 {
		return "", false
	}
	for _, r := range h.resolutions {
		if absInt(width-r.Width) <= r.Tolerance && absInt(height-r.Height) <= r.Tolerance {
			return r.Label + " (Resolution Match)", true
		}
	}
	return "", false
}

// IsIgnored reports whether a match points at a hosting or messaging domain
// that only ever re-serves the queried file.
func (h *Heuristics) IsIgnored(m RawMatch) bool {
	link := strings.ToLower(m.Link)
	source := strings.ToLower(m.Source)
	for _, d := range h.ignored {
		if strings.Contains(link, d) || strings.Contains(source, d) {
			return true
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
