package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidatesWithDataSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataSource.Path = "/tmp/analytics.db"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Agent.Provider = "acme" }},
		{"empty model", func(c *Config) { c.Agent.Model = "" }},
		{"missing datasource", func(c *Config) { c.DataSource.Path = "" }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"zero retention", func(c *Config) { c.Retention.MaxAgeDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataSource.Path = "/tmp/analytics.db"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Agent.Provider)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vantage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "/tmp/vantage-test",
		"agent": {"provider": "openai", "model": "gpt-4o"},
		"datasource": {"path": "/tmp/analytics.db", "max_rows": 500}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Agent.Provider)
	assert.Equal(t, "gpt-4o", cfg.Agent.Model)
	assert.Equal(t, 500, cfg.DataSource.MaxRows)

	// path defaults derive from data_dir
	assert.Equal(t, "/tmp/vantage-test/vantage.log", cfg.Logging.File)
	assert.Equal(t, "/tmp/vantage-test/memory.db", cfg.Memory.Path)
	assert.Equal(t, "/tmp/vantage-test/vantage.db", cfg.StorePath())
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("VANTAGE_API_KEY", "sk-test-1234567890abcdefghij")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890abcdefghij", cfg.Agent.APIKey)
}
