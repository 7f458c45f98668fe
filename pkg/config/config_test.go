package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/comet/pkg/errors"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.API.BaseURL = "https://api.example.com/integration"
	return cfg
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 10, cfg.Extraction.OverlapMinutes)
	assert.Equal(t, 500, cfg.Extraction.PageSize)
	assert.Equal(t, 5, cfg.Reliability.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Reliability.RecoveryTimeout)
	assert.Equal(t, "__", cfg.Flatten.Separator)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingBaseURL(t *testing.T) {
	cfg := NewConfig()
	err := cfg.Validate()

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateIncludeExcludeConflict(t *testing.T) {
	cfg := validConfig()
	cfg.Entities.Include = []string{"order_*", "item"}
	cfg.Entities.Exclude = []string{"item"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "include and exclude")
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Extraction.PageSize = 0 }},
		{"negative overlap", func(c *Config) { c.Extraction.OverlapMinutes = -1 }},
		{"negative retries", func(c *Config) { c.Reliability.RetryAttempts = -1 }},
		{"zero failure threshold", func(c *Config) { c.Reliability.FailureThreshold = 0 }},
		{"empty separator", func(c *Config) { c.Flatten.Separator = "" }},
		{"zero max depth", func(c *Config) { c.Flatten.MaxDepth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOverlap(t *testing.T) {
	e := ExtractionConfig{OverlapMinutes: 10}
	assert.Equal(t, 10*time.Minute, e.Overlap())
}

func TestLoad(t *testing.T) {
	content := `
api:
  base_url: https://api.example.com/integration
  token: secret
entities:
  include: ["order_*"]
  exclude: ["*_temp"]
extraction:
  overlap_minutes: 15
  page_size: 200
reliability:
  failure_threshold: 3
`
	path := filepath.Join(t.TempDir(), "comet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "https://api.example.com/integration", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, []string{"order_*"}, cfg.Entities.Include)
	assert.Equal(t, []string{"*_temp"}, cfg.Entities.Exclude)
	assert.Equal(t, 15, cfg.Extraction.OverlapMinutes)
	assert.Equal(t, 200, cfg.Extraction.PageSize)
	assert.Equal(t, 3, cfg.Reliability.FailureThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg := NewConfig()
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), cfg)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
