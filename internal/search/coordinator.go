// Package search runs track searches typed by the user and resolves which
// track an "add to queue" action targets.
package search

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
)

const (
	// DefaultDebounce is the quiet period after typing before a search runs.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultLimit is the number of results requested.
	DefaultLimit = 10
)

// Searcher runs a track search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.Track, error)
}

// Snapshot is a consistent copy of the coordinator's state.
type Snapshot struct {
	Query       string
	Results     []core.Track
	ShowResults bool
	Selection   string
	Searching   bool
}

// Coordinator debounces typed queries and guarantees that only the newest
// query's results are ever shown. Every input bumps a sequence number;
// a response whose number is no longer current is discarded.
type Coordinator struct {
	searcher Searcher
	guard    auth.Refresher
	debounce time.Duration
	limit    int
	logger   *log.Logger
	report   func(error)
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	inflight context.CancelFunc
	snap     Snapshot
	closed   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce sets the typing quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithLimit sets the number of results requested.
func WithLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithRefresher renews the session when a search hits an authorization failure.
func WithRefresher(r auth.Refresher) Option {
	return func(c *Coordinator) { c.guard = r }
}

// WithReporter receives failed searches.
func WithReporter(fn func(error)) Option {
	return func(c *Coordinator) { c.report = fn }
}

// WithOnChange is called after every state change.
func WithOnChange(fn func()) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.WithPrefix("search")
		}
	}
}

// NewCoordinator creates a coordinator. Close releases its timers.
func NewCoordinator(searcher Searcher, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		searcher: searcher,
		debounce: DefaultDebounce,
		limit:    DefaultLimit,
		logger:   log.New(io.Discard),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.Results = append([]core.Track(nil), c.snap.Results...)
	return s
}

// Results returns the results of the newest completed query.
func (c *Coordinator) Results() []core.Track {
	return c.Snapshot().Results
}

// Selection returns the explicitly selected track URI, if any.
func (c *Coordinator) Selection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Selection
}

// Input handles the text box changing to text.
//
// Empty text clears results. A track URI becomes the selection directly
// without searching. Anything else clears the selection and schedules a
// search after the debounce period; further input restarts the wait.
func (c *Coordinator) Input(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	seq := c.invalidateLocked()
	c.snap.Query = text

	query := strings.TrimSpace(text)
	switch {
	case query == "":
		c.snap.Results = nil
		c.snap.ShowResults = false
		c.snap.Selection = ""
	case core.IsTrackURI(query):
		c.snap.Selection = query
		c.snap.ShowResults = false
	default:
		c.snap.Selection = ""
		c.timer = time.AfterFunc(c.debounce, func() {
			c.execute(c.ctx, seq, query)
		})
	}
	c.mu.Unlock()

	c.changed()
}

// Search runs query immediately, bypassing the debounce, and returns its
// results. It supersedes any pending or in-flight query.
func (c *Coordinator) Search(ctx context.Context, query string) ([]core.Track, error) {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, context.Canceled
	}
	seq := c.invalidateLocked()
	c.snap.Query = query
	c.snap.Selection = ""
	c.mu.Unlock()

	if query == "" {
		c.Clear()
		return nil, nil
	}
	return c.execute(ctx, seq, query)
}

// Select makes track the explicit target and shows its label in the box.
func (c *Coordinator) Select(track core.Track) {
	c.mu.Lock()
	c.invalidateLocked()
	c.snap.Selection = track.URI
	c.snap.Query = track.Label()
	c.snap.ShowResults = false
	c.mu.Unlock()

	c.changed()
}

// Clear resets query, results and selection.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.invalidateLocked()
	c.snap = Snapshot{}
	c.mu.Unlock()

	c.changed()
}

// Close cancels any pending or in-flight search. Later input is ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.invalidateLocked()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// invalidateLocked makes every outstanding query stale and returns the
// new sequence number.
func (c *Coordinator) invalidateLocked() uint64 {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.snap.Searching = false
	return c.seq
}

func (c *Coordinator) execute(ctx context.Context, seq uint64, query string) ([]core.Track, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		return nil, context.Canceled
	}
	c.inflight = cancel
	c.snap.Searching = true
	c.mu.Unlock()
	c.changed()

	c.logger.Debug("searching", "query", query, "seq", seq)

	var results []core.Track
	err := auth.Do(ctx, c.guard, func(ctx context.Context) error {
		var err error
		results, err = c.searcher.Search(ctx, query, c.limit)
		return err
	})

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale results", "query", query, "seq", seq)
		return nil, context.Canceled
	}
	c.inflight = nil
	c.snap.Searching = false
	if err != nil {
		c.snap.Results = nil
		c.snap.ShowResults = false
	} else {
		c.snap.Results = results
		c.snap.ShowResults = true
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.logger.Warn("search failed", "query", query, "err", err)
		if c.report != nil && !rerrors.IsCanceled(err) {
			c.report(err)
		}
		return nil, err
	}
	return results, nil
}

func (c *Coordinator) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
