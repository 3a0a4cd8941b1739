package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. SITESYNC_BASE_URL
	EnvPrefix = "SITESYNC"

	// DefaultTenantID is the application id the document store scopes all tables by
	DefaultTenantID = "d5079fe5-e81c-454d-a170-8530331d8833"
	DefaultBaseURL  = "http://localhost:8080"
)

// TracingConfig controls span export
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// TLSConfig controls how the client verifies an HTTPS document store
type TLSConfig struct {
	CAFile             string `mapstructure:"ca_file" yaml:"ca_file,omitempty"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// MetricsConfig controls metric collection
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Config is the full runtime configuration. It is passed by value to
// constructors; nothing in the module reads it from a global.
type Config struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	TenantID           string        `mapstructure:"tenant_id" yaml:"tenant_id"`
	UserID             string        `mapstructure:"user_id" yaml:"user_id"`
	APIKey             string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit          float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst          int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	RefreshConcurrency int           `mapstructure:"refresh_concurrency" yaml:"refresh_concurrency"`
	RefreshRetries     int           `mapstructure:"refresh_retries" yaml:"refresh_retries"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format"`
	TLS                TLSConfig     `mapstructure:"tls" yaml:"tls"`
	Tracing            TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics            MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		TenantID:           DefaultTenantID,
		Timeout:            30 * time.Second,
		RateLimit:          0,
		RateBurst:          1,
		RefreshConcurrency: 4,
		RefreshRetries:     0,
		LogLevel:           "info",
		LogFormat:          "text",
		Tracing: TracingConfig{
			Endpoint: "localhost:4318",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// SetDefaults registers every key on v so environment overrides resolve
// even when the key is absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("tenant_id", d.TenantID)
	v.SetDefault("user_id", d.UserID)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("refresh_concurrency", d.RefreshConcurrency)
	v.SetDefault("refresh_retries", d.RefreshRetries)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("tls.ca_file", d.TLS.CAFile)
	v.SetDefault("tls.insecure_skip_verify", d.TLS.InsecureSkipVerify)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// DefaultPath returns $HOME/.sitesync/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".sitesync", "config.yaml"), nil
}

// Load reads configuration into v from file (or the default location when
// file is empty), a .env file in the working directory and SITESYNC_*
// environment variables, in increasing order of precedence.
func Load(v *viper.Viper, file string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else if path, err := DefaultPath(); err == nil {
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Normalize trims the base URL and fills zero values with defaults
func (c *Config) Normalize() {
	d := Default()
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.TenantID = strings.TrimSpace(c.TenantID)
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.RefreshConcurrency <= 0 {
		c.RefreshConcurrency = d.RefreshConcurrency
	}
	if c.RefreshRetries < 0 {
		c.RefreshRetries = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}

// Validate rejects configurations the client cannot run with
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.TenantID == "" {
		return errors.New("tenant_id is required")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// JSONLogs reports whether log output should be JSON
func (c Config) JSONLogs() bool {
	return c.LogFormat == "json"
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

// Encode renders the config as a config file body
func (c Config) Encode() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteFile writes c to path, creating parent directories. Existing files
// are left untouched unless overwrite is set.
func WriteFile(path string, c Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
