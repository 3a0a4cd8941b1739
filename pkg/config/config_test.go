package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://site.example.com/api/
tenant_id: tenant-1
timeout: 5s
refresh_concurrency: 8
tracing:
  enabled: true
  endpoint: collector:4318
`), 0600))

	t.Setenv("SITESYNC_USER_ID", "user-42")
	t.Setenv("SITESYNC_REFRESH_RETRIES", "2")
	t.Setenv("SITESYNC_METRICS_ENABLED", "false")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://site.example.com/api", cfg.BaseURL)
	assert.Equal(t, "tenant-1", cfg.TenantID)
	assert.Equal(t, "user-42", cfg.UserID)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.RefreshConcurrency)
	assert.Equal(t, 2, cfg.RefreshRetries)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultTenantID, cfg.TenantID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"blank base url", func(c *Config) { c.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.BaseURL = "localhost" }, true},
		{"blank tenant", func(c *Config) { c.TenantID = "" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"tracing without endpoint", func(c *Config) { c.Tracing = TracingConfig{Enabled: true} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := Config{BaseURL: " http://x/ ", RefreshRetries: -3}
	cfg.Normalize()
	assert.Equal(t, "http://x", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.RefreshConcurrency)
	assert.Equal(t, 0, cfg.RefreshRetries)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.UserID = "user-7"
	cfg.APIKey = "secret"

	require.NoError(t, WriteFile(path, cfg, false))
	assert.Error(t, WriteFile(path, cfg, false), "existing file must not be overwritten")

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	assert.Equal(t, "****", cfg.Redacted().APIKey)
	assert.Equal(t, "secret", cfg.APIKey)
}
