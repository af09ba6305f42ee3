package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWithDefaults(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, config.Generators)
	assert.Equal(t, "osint-dual-engine-v3", config.Analysis.ServiceName)
	assert.Equal(t, 20, config.Analysis.ViralThreshold)
	assert.Equal(t, 8, config.Analysis.MaxMatches)
	assert.Equal(t, "serper", config.Search.Provider)
	assert.Empty(t, config.Search.SerperKey)
	assert.Empty(t, config.ResolutionRules)
}

func TestLoadConfigFromFile(t *testing.T) {
	configData := `
generators:
  - name: "TestGen"
    keys: ["testgen"]
resolution_rules:
  - label: "Wide"
    width: 1792
    height: 1024
    tolerance: 2
analysis:
  viral_threshold: 5
search:
  provider: searchapi
  gl: de
cache:
  ttl: 30s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configData), 0o644))

	t.Setenv("SEARCHAPI_API_KEY", "secret")
	t.Setenv("SEARCH_PROVIDER", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, config.Generators, 1)
	assert.Equal(t, "TestGen", config.Generators[0].Name)
	require.Len(t, config.ResolutionRules, 1)
	assert.Equal(t, 2, config.ResolutionRules[0].Tolerance)
	assert.Equal(t, 5, config.Analysis.ViralThreshold)
	assert.Equal(t, 8, config.Analysis.MaxMatches, "unset keys keep their defaults")
	assert.Equal(t, "searchapi", config.Search.Provider)
	assert.Equal(t, "de", config.Search.Country)
	assert.Equal(t, "secret", config.Search.SearchAPIKey)
	assert.Equal(t, 30*time.Second, config.Cache.TTL)
	assert.Equal(t, "redis://localhost:6379/0", config.Cache.RedisURL)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
