package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)

	assert.Equal(t, 60*time.Second, cfg.Routing.StreamTimeout)
	assert.Equal(t, int64(1024), cfg.Routing.MaxSessions)
	assert.Equal(t, 500, cfg.Classifier.LongPromptChars)
	assert.Equal(t, 100, cfg.Classifier.ShortPromptChars)
	assert.Equal(t, []string{"code", "implement", "complex", "analyze", "refactor"}, cfg.Classifier.PremiumKeywords)
	assert.True(t, cfg.CostTracking.Enabled)
	assert.Empty(t, cfg.Providers)
}

func TestLoadConfig_FileAndAPIKeyResolution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-12345")

	configContent := `
routing:
  stream_timeout: 5s
  chains:
    eco: ["", "phi3"]
providers:
  - id: "openai-main"
    type: "openai"
    api_key: "ENV:TEST_API_KEY"
    prefixes: ["gpt-"]
    enabled: true
catalog:
  - id: "gpt-4o"
    owned_by: "openai"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-12345", cfg.Providers[0].APIKey)
	assert.Equal(t, []string{"gpt-"}, cfg.Providers[0].Prefixes)
	assert.Equal(t, 5*time.Second, cfg.Routing.StreamTimeout)
	assert.Equal(t, []string{"", "phi3"}, cfg.Routing.Chains.Eco)
	require.Len(t, cfg.Catalog, 1)
	assert.Equal(t, "openai", cfg.Catalog[0].OwnedBy)
}

func TestLoadConfig_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}
