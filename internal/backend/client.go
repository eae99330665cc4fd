// Package backend is the HTTP client for the intermediary playback backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	rerrors "github.com/tessro/riffbar/internal/errors"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 512
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is maps 401 and 403 onto errors.ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	if target != rerrors.ErrUnauthorized {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client performs requests against the backend. It keeps no session state
// of its own beyond the cookie jar that carries the backend session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cached     bool
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar is
// kept if set, otherwise a fresh jar is attached.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second; 0 disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

// WithCached selects the cached playback and queue endpoints.
func WithCached(cached bool) Option {
	return func(c *Client) { c.cached = cached }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithPrefix("backend")
		}
	}
}

// New creates a client for the backend rooted at baseURL
// (for example https://host/api/spotify).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.New(io.Discard),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CookieJar returns the jar holding the backend session cookie, so other
// connections to the same host can present it.
func (c *Client) CookieJar() http.CookieJar {
	return c.httpClient.Jar
}

// LoginURL returns the page that starts the external login flow.
func (c *Client) LoginURL() string {
	return c.baseURL + "/login"
}

// get performs a GET and returns the raw body. A 204 yields a nil body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path)
}

// post performs a body-less POST and returns the raw body.
func (c *Client) post(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path)
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := c.now()
	c.logger.Debug("request", "method", method, "path", path, "id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("network error", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, rerrors.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: read body: %w", method, path, rerrors.ErrNetworkError, err)
	}

	c.logger.Debug("response", "method", method, "path", path, "status", resp.StatusCode,
		"elapsed", c.now().Sub(start), "id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return body, nil
}

// decode unmarshals body into v. An empty body reports false; an unparseable
// body is logged and also reports false so callers treat it as no data.
func (c *Client) decode(path string, body []byte, v any) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Warn("discarding malformed response", "path", path,
			"err", fmt.Errorf("%w: %w", rerrors.ErrMalformedResponse, err))
		return false
	}
	return true
}

// BuildURL builds a path with query parameters.
func BuildURL(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
