package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lysogeny/seafile-scraper/internal/seafile"
)

// Config defines configuration for the seafile-scraper CLI.
type Config struct {
	BaseURL      string            `yaml:"base_url"`
	Token        string            `yaml:"token"`
	Output       string            `yaml:"output"`
	Workers      int               `yaml:"workers"`
	Timeout      time.Duration     `yaml:"timeout"`
	Overwrite    bool              `yaml:"overwrite"`
	Progress     bool              `yaml:"progress"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	Retry        RetryConfig       `yaml:"retry"`
	Endpoints    seafile.Endpoints `yaml:"endpoints"`
	Log          LogConfig         `yaml:"log"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// LogConfig defines logging behavior.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:      5,
		Timeout:      60 * time.Second,
		PollInterval: time.Second,
		Retry: RetryConfig{
			Attempts: 5,
			Backoff:  10 * time.Second,
		},
		Endpoints: seafile.DefaultEndpoints(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	BaseURL      string            `yaml:"base_url"`
	Token        string            `yaml:"token"`
	Output       string            `yaml:"output"`
	Workers      int               `yaml:"workers"`
	Timeout      string            `yaml:"timeout"`
	Overwrite    bool              `yaml:"overwrite"`
	Progress     bool              `yaml:"progress"`
	PollInterval string            `yaml:"poll_interval"`
	Retry        yamlRetryConfig   `yaml:"retry"`
	Endpoints    seafile.Endpoints `yaml:"endpoints"`
	Log          LogConfig         `yaml:"log"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if yc.Token != "" {
		cfg.Token = yc.Token
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	cfg.Overwrite = yc.Overwrite
	cfg.Progress = yc.Progress
	if yc.PollInterval != "" {
		d, err := time.ParseDuration(yc.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	cfg.Endpoints = mergeEndpoints(cfg.Endpoints, yc.Endpoints)
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SCRAPER_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SCRAPER_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SCRAPER_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("SCRAPER_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("SCRAPER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCRAPER_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("SCRAPER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRAPER_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("SCRAPER_OVERWRITE"); v != "" {
		c.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("SCRAPER_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("SCRAPER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRAPER_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv("SCRAPER_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SCRAPER_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("SCRAPER_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SCRAPER_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("SCRAPER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SCRAPER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base URL is required")
	}
	if c.Token == "" {
		return errors.New("config: share token is required")
	}
	if c.Output == "" {
		return errors.New("config: output is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll_interval must be positive")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.Token != "" {
		c.Token = override.Token
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.Overwrite {
		c.Overwrite = override.Overwrite
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.PollInterval != 0 {
		c.PollInterval = override.PollInterval
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	c.Endpoints = mergeEndpoints(c.Endpoints, override.Endpoints)
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	return c
}

func mergeEndpoints(base, override seafile.Endpoints) seafile.Endpoints {
	if override.File != "" {
		base.File = override.File
	}
	if override.Listing != "" {
		base.Listing = override.Listing
	}
	if override.ExportInit != "" {
		base.ExportInit = override.ExportInit
	}
	if override.ExportProgress != "" {
		base.ExportProgress = override.ExportProgress
	}
	if override.Archive != "" {
		base.Archive = override.Archive
	}
	if override.Release != "" {
		base.Release = override.Release
	}
	return base
}
