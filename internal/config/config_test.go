package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Workers != 5 {
		t.Errorf("expected default workers 5, got %d", cfg.Workers)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected default timeout 60s, got %v", cfg.Timeout)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("expected default poll interval 1s, got %v", cfg.PollInterval)
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("expected default retry attempts 5, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 10*time.Second {
		t.Errorf("expected default retry backoff 10s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Endpoints.IsZero() {
		t.Error("expected default endpoints to be set")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
base_url: https://seafile.example.org
token: abc123
output: /data/mirror
workers: 8
timeout: 30s
overwrite: true
poll_interval: 500ms
retry:
  attempts: 3
  backoff: 2s
endpoints:
  file: custom/{token}/files/
log:
  level: debug
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.BaseURL != "https://seafile.example.org" {
		t.Errorf("expected base URL, got %s", cfg.BaseURL)
	}
	if cfg.Token != "abc123" {
		t.Errorf("expected token abc123, got %s", cfg.Token)
	}
	if cfg.Output != "/data/mirror" {
		t.Errorf("expected output /data/mirror, got %s", cfg.Output)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Timeout)
	}
	if !cfg.Overwrite {
		t.Error("expected overwrite true")
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", cfg.PollInterval)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Endpoints.File != "custom/{token}/files/" {
		t.Errorf("expected overridden file endpoint, got %s", cfg.Endpoints.File)
	}
	if cfg.Endpoints.Listing != "d/{token}/" {
		t.Errorf("expected default listing endpoint preserved, got %s", cfg.Endpoints.Listing)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_BASE_URL", "https://seafile.example.org")
	t.Setenv("SCRAPER_TOKEN", "envtoken")
	t.Setenv("SCRAPER_WORKERS", "12")
	t.Setenv("SCRAPER_TIMEOUT", "45s")
	t.Setenv("SCRAPER_OVERWRITE", "true")
	t.Setenv("SCRAPER_RETRY_ATTEMPTS", "2")
	t.Setenv("SCRAPER_RETRY_BACKOFF", "500ms")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.BaseURL != "https://seafile.example.org" {
		t.Errorf("expected base URL from env, got %s", cfg.BaseURL)
	}
	if cfg.Token != "envtoken" {
		t.Errorf("expected token from env, got %s", cfg.Token)
	}
	if cfg.Workers != 12 {
		t.Errorf("expected workers 12, got %d", cfg.Workers)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Timeout)
	}
	if !cfg.Overwrite {
		t.Error("expected overwrite true")
	}
	if cfg.Retry.Attempts != 2 {
		t.Errorf("expected retry attempts 2, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.Retry.Backoff)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "lots")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for unparseable SCRAPER_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.BaseURL = "https://seafile.example.org"
	valid.Token = "abc123"
	valid.Output = "/data/mirror"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing base URL", func(c *Config) { c.BaseURL = "" }, true},
		{"missing token", func(c *Config) { c.Token = "" }, true},
		{"missing output", func(c *Config) { c.Output = "" }, true},
		{"invalid workers", func(c *Config) { c.Workers = 0 }, true},
		{"invalid timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"invalid poll interval", func(c *Config) { c.PollInterval = -time.Second }, true},
		{"negative retry attempts", func(c *Config) { c.Retry.Attempts = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.BaseURL = "https://seafile.example.org"
	base.Token = "abc123"
	base.Output = "/data/mirror"

	override := Config{
		Workers: 10,
		// Leave other fields at zero values
	}

	merged := base.Merge(override)

	// Should keep base values for non-overridden fields
	if merged.BaseURL != "https://seafile.example.org" {
		t.Errorf("expected BaseURL preserved, got %s", merged.BaseURL)
	}
	if merged.Token != "abc123" {
		t.Errorf("expected Token preserved, got %s", merged.Token)
	}
	if merged.Retry.Backoff != 10*time.Second {
		t.Errorf("expected Retry.Backoff preserved, got %v", merged.Retry.Backoff)
	}
	if merged.Endpoints.IsZero() {
		t.Error("expected Endpoints preserved")
	}

	// Should use override values
	if merged.Workers != 10 {
		t.Errorf("expected Workers overridden to 10, got %d", merged.Workers)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
