package config

// DefaultBackendURL is the backend used when none is configured.
const DefaultBackendURL = "https://cadebeckers.com/api/spotify"

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:       DefaultBackendURL,
			Timeout:   10000,
			RateLimit: 20,
		},
		Sync: SyncConfig{
			Interval: 1000,
		},
		Auth: AuthConfig{
			RefreshInterval: 30,
		},
		Search: SearchConfig{
			Debounce: 500,
			Limit:    10,
		},
		Control: ControlConfig{
			RestartThreshold: 10000,
		},
		TUI: TUIConfig{
			Theme:     "auto",
			QueueRows: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Backend
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}

	// Sync
	if c.Sync.Interval == 0 {
		c.Sync.Interval = d.Sync.Interval
	}

	// Auth
	if c.Auth.RefreshInterval == 0 {
		c.Auth.RefreshInterval = d.Auth.RefreshInterval
	}

	// Search
	if c.Search.Debounce == 0 {
		c.Search.Debounce = d.Search.Debounce
	}
	if c.Search.Limit == 0 {
		c.Search.Limit = d.Search.Limit
	}

	// Control
	if c.Control.RestartThreshold == 0 {
		c.Control.RestartThreshold = d.Control.RestartThreshold
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.QueueRows == 0 {
		c.TUI.QueueRows = d.TUI.QueueRows
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
