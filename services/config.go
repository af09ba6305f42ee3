package services

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Generators      []GeneratorRule  `yaml:"generators"`
	ResolutionRules []ResolutionRule `yaml:"resolution_rules"`
	IgnoredDomains  []string         `yaml:"ignored_domains"`
	Analysis        AnalysisConfig   `yaml:"analysis"`
	Search          SearchConfig     `yaml:"search"`
	Probe           ProbeConfig      `yaml:"probe"`
	Cache           CacheConfig      `yaml:"cache"`
	Archive         ArchiveConfig    `yaml:"archive"`
	RateLimiting    RateLimitConfig  `yaml:"rate_limiting"`
}

// GeneratorRule names an AI generator and the lowercase keywords that betray it
// in filenames and search result text.
type GeneratorRule struct {
	Name string   `yaml:"name"`
	Keys []string `yaml:"keys"`
}

// ResolutionRule maps an output resolution to a generator label. Tolerance is
// applied to both axes in pixels.
type ResolutionRule struct {
	Label     string `yaml:"label"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Tolerance int    `yaml:"tolerance"`
}

type AnalysisConfig struct {
	ServiceName    string `yaml:"service_name"`
	ViralThreshold int    `yaml:"viral_threshold"`
	MaxMatches     int    `yaml:"max_matches"`
	MinQueryLength int    `yaml:"min_query_length"`
	FallbackLinks  bool   `yaml:"fallback_links"`
}

type SearchConfig struct {
	Provider     string        `yaml:"provider"`
	Country      string        `yaml:"gl"`
	Language     string        `yaml:"hl"`
	Timeout      time.Duration `yaml:"timeout"`
	SerperURL    string        `yaml:"serper_url"`
	SearchAPIURL string        `yaml:"searchapi_url"`
	SerperKey    string        `yaml:"-"`
	SearchAPIKey string        `yaml:"-"`
}

type ProbeConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxBytes     int           `yaml:"max_bytes"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	Preview      bool          `yaml:"preview"`
	AllowPrivate bool          `yaml:"allow_private"` // loopback and private networks
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisURL   string        `yaml:"-"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// DefaultConfig mirrors the heuristics the analyze endpoint shipped with.
func DefaultConfig() *Config {
	return &Config{
		Generators: []GeneratorRule{
			{Name: "Midjourney", Keys: []string{"midjourney", "mj_"}},
			{Name: "DALL-E", Keys: []string{"dalle", "dall-e"}},
			{Name: "Stable Diffusion", Keys: []string{"stable-diffusion", "sdxl"}},
			{Name: "Sora", Keys: []string{"sora"}},
			{Name: "Runway", Keys: []string{"runway"}},
			{Name: "Pika", Keys: []string{"pika"}},
		},
		IgnoredDomains: []string{"cloudinary", "vercel", "blob:", "discord", "whatsapp", "telegram"},
		Analysis: AnalysisConfig{
			ServiceName:    "osint-dual-engine-v3",
			ViralThreshold: 20,
			MaxMatches:     8,
			MinQueryLength: 4,
			FallbackLinks:  true,
		},
		Search: SearchConfig{
			Provider:     "serper",
			Country:      "us",
			Language:     "en",
			Timeout:      15 * time.Second,
			SerperURL:    "https://google.serper.dev",
			SearchAPIURL: "https://www.searchapi.io/api/v1/search",
		},
		Probe: ProbeConfig{
			Enabled:   true,
			MaxBytes:  256 * 1024,
			Timeout:   8 * time.Second,
			UserAgent: "footprint/1.0 (+media header probe)",
			Preview:   true,
		},
		Cache: CacheConfig{
			TTL:        10 * time.Minute,
			MaxEntries: 1000,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Prefix:  "reports",
		},
		RateLimiting: RateLimitConfig{
			MaxEntries:      1000,
			CleanupInterval: 1 * time.Minute,
			EntryTTL:        30 * time.Minute,
			TrustedProxies:  []string{"127.0.0.1", "::1"},
			Capacity:        30,
			Refill:          1 * time.Minute,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
// Secrets are always taken from the environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	c.Search.SerperKey = os.Getenv("SERPER_API_KEY")
	c.Search.SearchAPIKey = os.Getenv("SEARCHAPI_API_KEY")
	if p := os.Getenv("SEARCH_PROVIDER"); p != "" {
		c.Search.Provider = p
	}
	c.Cache.RedisURL = os.Getenv("REDIS_URL")
	if os.Getenv("ARCHIVE_REPORTS") == "true" {
		c.Archive.Enabled = true
	}
}
