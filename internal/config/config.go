package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"

	rerrors "github.com/tessro/riffbar/internal/errors"
)

const (
	appName        = "riffbar"
	configFileName = "config.toml"
	rcFileName     = ".riffbarrc"
	envPrefix      = "RIFFBAR_"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.riffbarrc, then riffbar/config.toml in the XDG config dirs.
func Load() (*Config, error) {
	return LoadFrom(FindConfigFile())
}

// LoadFrom reads configuration from a specific file path. An empty path
// yields defaults plus environment overrides; a path that does not exist is
// ErrConfigNotFound.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", path, rerrors.ErrConfigNotFound)
			}
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile returns the first existing config file path, or "".
func FindConfigFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		rc := filepath.Join(home, rcFileName)
		if _, err := os.Stat(rc); err == nil {
			return rc
		}
	}

	if p, err := xdg.SearchConfigFile(filepath.Join(appName, configFileName)); err == nil {
		return p
	}

	return ""
}

// DefaultPath returns where `config init` writes a new file.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, configFileName))
}

// StateFile returns the persisted session flag path, honoring auth.state_file.
func (c *Config) StateFile() (string, error) {
	if c.Auth.StateFile != "" {
		return c.Auth.StateFile, nil
	}
	return xdg.StateFile(filepath.Join(appName, "session.json"))
}

// Write encodes cfg as TOML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies RIFFBAR_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
