package app

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/backend"
	"github.com/tessro/riffbar/internal/config"
	"github.com/tessro/riffbar/internal/push"
)

// FromConfig builds the backend client, the persisted flag store and an
// engine over them.
func FromConfig(cfg *config.Config, logger *log.Logger, opts ...Option) (*Engine, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	path, err := cfg.StateFile()
	if err != nil {
		return nil, fmt.Errorf("locate session state: %w", err)
	}
	flags, err := auth.NewFileStore(path)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithPollInterval(cfg.Sync.PollInterval()),
		WithRefreshInterval(cfg.Auth.RefreshPeriod()),
		WithDebounce(cfg.Search.DebounceDelay()),
		WithSearchLimit(cfg.Search.Limit),
		WithRestartThreshold(cfg.Control.Threshold()),
	}
	if cfg.Backend.PushURL != "" {
		base = append(base, WithPush(cfg.Backend.PushURL, push.WithCookieJar(client.CookieJar())))
	}
	return New(client, flags, append(base, opts...)...)
}

// NewClient builds a backend client from cfg.
func NewClient(cfg *config.Config, logger *log.Logger) (*backend.Client, error) {
	client, err := backend.New(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.RequestTimeout()),
		backend.WithRateLimit(cfg.Backend.RateLimit),
		backend.WithCached(cfg.Backend.Cached),
		backend.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	return client, nil
}
