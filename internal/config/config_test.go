package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	rerrors "github.com/tessro/riffbar/internal/errors"
)

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
url = "http://localhost:8080/api/spotify"

[sync]
interval = 2000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Backend.URL != "http://localhost:8080/api/spotify" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Sync.Interval != 2000 {
		t.Errorf("Sync.Interval = %d, want 2000", cfg.Sync.Interval)
	}
	if cfg.Search.Debounce != 500 {
		t.Errorf("Search.Debounce = %d, want 500", cfg.Search.Debounce)
	}
	if cfg.Auth.RefreshInterval != 30 {
		t.Errorf("Auth.RefreshInterval = %d, want 30", cfg.Auth.RefreshInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RIFFBAR_BACKEND_URL", "https://example.test/api")
	t.Setenv("RIFFBAR_SYNC_INTERVAL", "750")
	t.Setenv("RIFFBAR_LOG_LEVEL", "debug")
	t.Setenv("RIFFBAR_BACKEND_CACHED", "true")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Backend.URL != "https://example.test/api" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.Sync.Interval != 750 {
		t.Errorf("Sync.Interval = %d, want 750", cfg.Sync.Interval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if !cfg.Backend.Cached {
		t.Error("Backend.Cached = false, want true")
	}
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	t.Setenv("RIFFBAR_SYNC_INTERVAL", "soon")

	if _, err := LoadFrom(""); err == nil {
		t.Error("LoadFrom() should fail on a non-numeric interval")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "backend"},
		{"bad push scheme", func(c *Config) { c.Backend.PushURL = "https://x" }, "push_url"},
		{"interval too small", func(c *Config) { c.Sync.Interval = 10 }, "sync"},
		{"limit", func(c *Config) { c.Search.Limit = 100 }, "limit"},
		{"theme", func(c *Config) { c.TUI.Theme = "neon" }, "theme"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.TUI.QueueRows = 8

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.TUI.QueueRows != 8 {
		t.Errorf("QueueRows = %d, want 8", loaded.TUI.QueueRows)
	}
}

func TestStateFileOverride(t *testing.T) {
	cfg := Default()
	cfg.Auth.StateFile = "/tmp/riffbar-session.json"

	got, err := cfg.StateFile()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/riffbar-session.json" {
		t.Errorf("StateFile() = %q", got)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, rerrors.ErrConfigNotFound) {
		t.Errorf("LoadFrom() error = %v, want ErrConfigNotFound", err)
	}
}

func TestValidateWrapsInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Sync.Interval = 10
	cfg.TUI.Theme = "neon"

	err := cfg.Validate()
	if !errors.Is(err, rerrors.ErrInvalidConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"sync", "theme"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want it to mention %q", err, want)
		}
	}
}
