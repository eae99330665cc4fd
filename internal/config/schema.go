package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Backend BackendConfig `toml:"backend" envPrefix:"BACKEND_"`
	Sync    SyncConfig    `toml:"sync" envPrefix:"SYNC_"`
	Auth    AuthConfig    `toml:"auth" envPrefix:"AUTH_"`
	Search  SearchConfig  `toml:"search" envPrefix:"SEARCH_"`
	Control ControlConfig `toml:"control" envPrefix:"CONTROL_"`
	TUI     TUIConfig     `toml:"tui" envPrefix:"TUI_"`
	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
}

// BackendConfig holds settings for the intermediary HTTP backend.
type BackendConfig struct {
	URL       string `toml:"url" env:"URL"`
	PushURL   string `toml:"push_url" env:"PUSH_URL"`
	Cached    bool   `toml:"cached" env:"CACHED"`
	Timeout   int    `toml:"timeout" env:"TIMEOUT"`
	RateLimit int    `toml:"rate_limit" env:"RATE_LIMIT"`
}

// RequestTimeout returns the per-request timeout.
func (c BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// SyncConfig holds polling settings.
type SyncConfig struct {
	Interval int `toml:"interval" env:"INTERVAL"`
}

// PollInterval returns the delay between sync ticks.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

// AuthConfig holds session settings.
type AuthConfig struct {
	RefreshInterval int    `toml:"refresh_interval" env:"REFRESH_INTERVAL"`
	StateFile       string `toml:"state_file" env:"STATE_FILE"`
}

// RefreshPeriod returns the proactive refresh period.
func (c AuthConfig) RefreshPeriod() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Minute
}

// SearchConfig holds search box settings.
type SearchConfig struct {
	Debounce int `toml:"debounce" env:"DEBOUNCE"`
	Limit    int `toml:"limit" env:"LIMIT"`
}

// DebounceDelay returns the quiet period before a typed query is sent.
func (c SearchConfig) DebounceDelay() time.Duration {
	return time.Duration(c.Debounce) * time.Millisecond
}

// ControlConfig holds transport control settings.
type ControlConfig struct {
	RestartThreshold int `toml:"restart_threshold" env:"RESTART_THRESHOLD"`
}

// Threshold returns the position past which "previous" restarts the track.
func (c ControlConfig) Threshold() time.Duration {
	return time.Duration(c.RestartThreshold) * time.Millisecond
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme     string `toml:"theme" env:"THEME"`
	QueueRows int    `toml:"queue_rows" env:"QUEUE_ROWS"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	File  string `toml:"file" env:"FILE"`
}
