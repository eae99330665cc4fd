package config

import (
	"errors"
	"fmt"
	"net/url"

	rerrors "github.com/tessro/riffbar/internal/errors"
)

// Validate checks the configuration for errors. Any failure wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if err := c.Search.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search: %w", err))
	}
	if err := c.Control.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("control: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", rerrors.ErrInvalidConfig, errors.Join(errs...))
}

// Validate checks BackendConfig for errors.
func (c *BackendConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url: %s (must be http or https)", c.URL)
	}
	if c.PushURL != "" {
		p, err := url.Parse(c.PushURL)
		if err != nil {
			return fmt.Errorf("invalid push_url: %w", err)
		}
		if p.Scheme != "ws" && p.Scheme != "wss" {
			return fmt.Errorf("invalid push_url: %s (must be ws or wss)", c.PushURL)
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must be non-negative")
	}
	return nil
}

// Validate checks SyncConfig for errors.
func (c *SyncConfig) Validate() error {
	if c.Interval < 100 {
		return errors.New("interval must be at least 100ms")
	}
	return nil
}

// Validate checks AuthConfig for errors.
func (c *AuthConfig) Validate() error {
	if c.RefreshInterval < 1 {
		return errors.New("refresh_interval must be at least 1 minute")
	}
	return nil
}

// Validate checks SearchConfig for errors.
func (c *SearchConfig) Validate() error {
	if c.Debounce < 0 {
		return errors.New("debounce must be non-negative")
	}
	if c.Limit < 1 || c.Limit > 50 {
		return errors.New("limit must be between 1 and 50")
	}
	return nil
}

// Validate checks ControlConfig for errors.
func (c *ControlConfig) Validate() error {
	if c.RestartThreshold < 0 {
		return errors.New("restart_threshold must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.QueueRows < 0 {
		return errors.New("queue_rows must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
