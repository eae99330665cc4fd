// Package push receives server-pushed playback updates over STOMP on a
// websocket and feeds them into the same sink as polling.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"

	"github.com/tessro/riffbar/internal/backend"
	"github.com/tessro/riffbar/internal/poll"
)

const (
	// DefaultTopic is the destination the backend broadcasts updates on.
	DefaultTopic = "/topic/music-updates"

	// DefaultReconnectDelay is the wait between connection attempts.
	DefaultReconnectDelay = 5 * time.Second
)

// Message types broadcast by the backend.
const (
	TypePlayback      = "playback_update"
	TypeQueue         = "queue_update"
	TypeAuth          = "auth_update"
	TypeControlAction = "control_action"
	TypeStatus        = "status_message"
)

// Envelope is the JSON body of every broadcast.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ControlAction reports the outcome of a command issued by any client.
type ControlAction struct {
	Action string `json:"action"`
	Result string `json:"result"`
}

// Client keeps a STOMP subscription open and forwards updates to a sink.
type Client struct {
	url       string
	topic     string
	sink      poll.Sink
	dialer    *websocket.Dialer
	header    http.Header
	reconnect time.Duration
	logger    *log.Logger
	notify    func(text string)
	onAuth    func(authenticated bool)
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	conns  int
}

// Option configures a Client.
type Option func(*Client)

// WithTopic overrides the subscription destination.
func WithTopic(topic string) Option {
	return func(c *Client) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithCookieJar presents the cookies in jar on the handshake.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		d := *c.dialer
		d.Jar = jar
		c.dialer = &d
	}
}

// WithHeader adds handshake headers.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithReconnectDelay sets the wait between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnect = d
		}
	}
}

// WithNotifier receives status and control-action text.
func WithNotifier(fn func(text string)) Option {
	return func(c *Client) { c.notify = fn }
}

// WithAuthHandler receives auth updates.
func WithAuthHandler(fn func(authenticated bool)) Option {
	return func(c *Client) { c.onAuth = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithPrefix("push")
		}
	}
}

// New creates a push client for the websocket endpoint at rawURL.
func New(rawURL string, sink poll.Sink, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid push url %q", rawURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("push url %q must use ws or wss", rawURL)
	}

	dialer := *websocket.DefaultDialer
	c := &Client{
		url:       rawURL,
		topic:     DefaultTopic,
		sink:      sink,
		dialer:    &dialer,
		reconnect: DefaultReconnectDelay,
		logger:    log.New(io.Discard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URLFromBackend derives the push endpoint from the backend root, mapping
// http to ws and appending /ws to the host root.
func URLFromBackend(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Start runs the connection in the background until Stop or ctx ends.
// It is a no-op when already running.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Stop closes the connection and waits for the client to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Suspend closes the connection without waiting. It is safe to call from a
// credential state listener.
func (c *Client) Suspend() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether the client has been started.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Connections returns how many connections have been established.
func (c *Client) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("push connection lost", "err", err, "retry", c.reconnect)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnect):
		}
	}
}

// session runs one connection from dial to close.
func (c *Client) session(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	s := newStream(ws)
	defer s.Close()

	// Closing the socket ends the STOMP read loop, which closes the
	// subscription.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	host := ""
	if u, err := url.Parse(c.url); err == nil {
		host = u.Hostname()
	}
	conn, err := stomp.Connect(s,
		stomp.ConnOpt.AcceptVersion(stomp.V12),
		stomp.ConnOpt.Host(host),
		stomp.ConnOpt.HeartBeat(0, 0),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	sub, err := conn.Subscribe(c.topic, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.mu.Lock()
	c.conns++
	c.mu.Unlock()
	c.logger.Info("push connected", "url", c.url, "topic", c.topic)

	for msg := range sub.C {
		if msg.Err != nil {
			return msg.Err
		}
		if err := c.Dispatch(msg.Body); err != nil {
			c.logger.Warn("dropping push message", "err", err)
		}
	}
	return errors.New("subscription closed")
}

// Dispatch routes one broadcast body.
func (c *Client) Dispatch(body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	c.logger.Debug("push message", "type", env.Type)

	switch env.Type {
	case TypePlayback:
		var p backend.PlaybackState
		if err := decodeData(env.Data, &p); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
		c.sink.ApplyPlayback(backend.ConvertPlayback(&p, c.now()))
	case TypeQueue:
		var q backend.Queue
		if err := decodeData(env.Data, &q); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
		c.sink.ApplyQueue(backend.ConvertQueue(&q))
	case TypeStatus:
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
		c.emit(text)
	case TypeControlAction:
		var a ControlAction
		if err := decodeData(env.Data, &a); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
		c.emit(strings.TrimSpace(a.Action + ": " + a.Result))
	case TypeAuth:
		var ok bool
		if err := decodeData(env.Data, &ok); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
		if c.onAuth != nil {
			c.onAuth(ok)
		}
	default:
		c.logger.Debug("unknown push type", "type", env.Type)
	}
	return nil
}

func (c *Client) emit(text string) {
	if c.notify != nil && text != "" {
		c.notify(text)
	}
}

// decodeData unmarshals data into v. The backend sometimes sends the
// payload as a JSON string holding the encoded object.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return errors.New("missing data")
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		return json.Unmarshal([]byte(inner), v)
	}
	return json.Unmarshal(data, v)
}
