// Package app wires the sync, credential, command and search components
// into one engine with an explicit lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/control"
	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/poll"
	"github.com/tessro/riffbar/internal/push"
	"github.com/tessro/riffbar/internal/search"
	"github.com/tessro/riffbar/internal/state"
)

// RefreshedText is shown after a successful session refresh.
const RefreshedText = "Session refreshed"

// Engine owns every timer and background task of a session. Nothing runs
// until Start, and Stop releases all of it.
type Engine struct {
	remote core.Remote
	logger *log.Logger
	ttl    time.Duration

	guard   *auth.Guard
	store   *state.Store
	sink    *poll.Reconciler
	loop    *poll.Loop
	control *control.Dispatcher
	search  *search.Coordinator
	queue   *search.Resolver
	push    *push.Client

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	collect *rerrors.PartialResult[state.View]
}

type settings struct {
	logger           *log.Logger
	pollInterval     time.Duration
	refreshInterval  time.Duration
	debounce         time.Duration
	searchLimit      int
	restartThreshold time.Duration
	messageTTL       time.Duration
	pushURL          string
	pushOpts         []push.Option
	onChange         func()
}

// Option configures an Engine.
type Option func(*settings)

// WithLogger sets the logger handed to every component.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPollInterval sets the delay between sync ticks.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithRefreshInterval sets the proactive refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *settings) { s.refreshInterval = d }
}

// WithDebounce sets the search typing quiet period.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithSearchLimit sets how many results a search requests.
func WithSearchLimit(n int) Option {
	return func(s *settings) { s.searchLimit = n }
}

// WithRestartThreshold sets the restart-versus-previous cutoff.
func WithRestartThreshold(d time.Duration) Option {
	return func(s *settings) { s.restartThreshold = d }
}

// WithMessageTTL sets how long transient messages stay visible.
func WithMessageTTL(d time.Duration) Option {
	return func(s *settings) { s.messageTTL = d }
}

// WithPush enables the push connection at url. An empty url disables it.
func WithPush(url string, opts ...push.Option) Option {
	return func(s *settings) {
		s.pushURL = url
		s.pushOpts = opts
	}
}

// WithSearchChange is called whenever the search state changes.
func WithSearchChange(fn func()) Option {
	return func(s *settings) { s.onChange = fn }
}

// New builds an engine over remote. flags persists the authenticated flag.
func New(remote core.Remote, flags auth.FlagStore, opts ...Option) (*Engine, error) {
	s := settings{
		logger:      log.New(io.Discard),
		debounce:    search.DefaultDebounce,
		searchLimit: search.DefaultLimit,
		messageTTL:  control.DefaultMessageTTL,
	}
	for _, opt := range opts {
		opt(&s)
	}

	e := &Engine{
		remote: remote,
		logger: s.logger,
		ttl:    s.messageTTL,
		store:  state.New(),
	}

	e.guard = auth.NewGuard(remote, flags,
		auth.WithInterval(s.refreshInterval),
		auth.WithLogger(s.logger),
	)
	e.sink = poll.NewReconciler(e.store)
	e.loop = poll.NewLoop(remote, e.sink, e.guard,
		poll.WithInterval(s.pollInterval),
		poll.WithLogger(s.logger),
		poll.WithErrorHandler(e.report),
	)
	e.control = control.New(remote, e.store, e.guard,
		control.WithRestartThreshold(s.restartThreshold),
		control.WithMessageTTL(s.messageTTL),
		control.WithLogger(s.logger),
	)
	e.search = search.NewCoordinator(remote,
		search.WithDebounce(s.debounce),
		search.WithLimit(s.searchLimit),
		search.WithRefresher(e.guard),
		search.WithReporter(e.report),
		search.WithOnChange(s.onChange),
		search.WithLogger(s.logger),
	)
	e.queue = search.NewResolver(e.search, remote, e.store, e.guard, s.logger)

	if s.pushURL != "" {
		popts := append([]push.Option{
			push.WithLogger(s.logger),
			push.WithNotifier(func(text string) {
				e.store.SetMessage(text, state.LevelInfo, e.ttl)
			}),
			push.WithAuthHandler(e.onPushAuth),
		}, s.pushOpts...)
		pc, err := push.New(s.pushURL, e.sink, popts...)
		if err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
		e.push = pc
	}

	e.guard.OnChange(e.onAuthChange)
	return e, nil
}

// Store returns the published state.
func (e *Engine) Store() *state.Store { return e.store }

// Guard returns the credential guard.
func (e *Engine) Guard() *auth.Guard { return e.guard }

// Control returns the command dispatcher.
func (e *Engine) Control() *control.Dispatcher { return e.control }

// Search returns the search coordinator.
func (e *Engine) Search() *search.Coordinator { return e.search }

// Queue returns the enqueue resolver.
func (e *Engine) Queue() *search.Resolver { return e.queue }

// Loop returns the sync loop.
func (e *Engine) Loop() *poll.Loop { return e.loop }

// Push returns the push client, or nil when push is disabled.
func (e *Engine) Push() *push.Client { return e.push }

// Remote returns the backend the engine talks to.
func (e *Engine) Remote() core.Remote { return e.remote }

// LoginURL returns the external login page when the remote has one.
func (e *Engine) LoginURL() string {
	if l, ok := e.remote.(interface{ LoginURL() string }); ok {
		return l.LoginURL()
	}
	return ""
}

// Start probes the session and, when it is valid, starts syncing. A failed
// probe keeps the provisional state from the persisted flag and is
// returned alongside it.
func (e *Engine) Start(ctx context.Context) (auth.State, error) {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return e.guard.State(), nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	ctx = e.ctx
	e.mu.Unlock()

	st, err := e.guard.Probe(ctx)
	if err != nil {
		e.report(err)
	}
	e.guard.Start(ctx)

	if st == auth.Authenticated {
		e.startSync()
	}
	e.logger.Debug("engine started", "state", st)
	return st, err
}

// Stop cancels every background task and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.loop.Stop()
	e.guard.Stop()
	if e.push != nil {
		e.push.Stop()
	}
	e.search.Close()
}

// WaitForLogin probes every interval until the session is authenticated,
// which completes the external login flow.
func (e *Engine) WaitForLogin(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		st, err := e.guard.Probe(ctx)
		if err == nil && st == auth.Authenticated {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("login not completed: %w", rerrors.ErrTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Once probes the session and runs a single sync tick without starting any
// background task. The result carries the published view and every fetch
// that failed along the way; err is set only when the probe itself fails.
func (e *Engine) Once(ctx context.Context) (auth.State, *rerrors.PartialResult[state.View], error) {
	st, err := e.guard.Probe(ctx)
	if err != nil || st != auth.Authenticated {
		return st, nil, err
	}

	result := &rerrors.PartialResult[state.View]{}
	e.mu.Lock()
	e.collect = result
	e.mu.Unlock()

	e.loop.Tick(ctx)

	e.mu.Lock()
	e.collect = nil
	e.mu.Unlock()

	result.Data = e.store.View()
	return e.guard.State(), result, nil
}

func (e *Engine) runCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

func (e *Engine) startSync() {
	ctx := e.runCtx()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	e.loop.Start(ctx)
	if e.push != nil {
		e.push.Start(ctx)
	}
}

// onAuthChange keeps the background tasks in step with the session.
func (e *Engine) onAuthChange(from, to auth.State) {
	switch {
	case from == auth.Refreshing && to == auth.Unauthenticated:
		e.logger.Warn("session expired")
		e.store.Expire()
		e.suspendSync()
	case to == auth.Unauthenticated:
		e.store.Reset()
		e.suspendSync()
	case from == auth.Refreshing && to == auth.Authenticated:
		e.store.SetMessage(RefreshedText, state.LevelSuccess, e.ttl)
	case from == auth.Unauthenticated && to == auth.Authenticated:
		e.logger.Info("session authenticated")
		e.store.ClearMessage()
		e.startSync()
	}
}

func (e *Engine) suspendSync() {
	e.loop.Suspend()
	if e.push != nil {
		e.push.Suspend()
	}
}

// onPushAuth re-probes when the backend announces a session change.
func (e *Engine) onPushAuth(authenticated bool) {
	ctx := e.runCtx()
	if ctx == nil {
		return
	}
	e.logger.Debug("push auth update", "authenticated", authenticated)
	go func() {
		if _, err := e.guard.Probe(ctx); err != nil {
			e.logger.Debug("probe after push update failed", "err", err)
		}
	}()
}

// report turns a background failure into a transient message.
func (e *Engine) report(err error) {
	switch {
	case err == nil, rerrors.IsCanceled(err):
		return
	case errors.Is(err, rerrors.ErrSessionExpired):
		return
	}
	e.mu.Lock()
	if e.collect != nil {
		e.collect.AddError(err)
	}
	e.mu.Unlock()

	e.logger.Debug("reporting error", "kind", rerrors.KindOf(err), "err", err)
	e.store.SetMessage(rerrors.UserMessage(err), state.LevelError, e.ttl)
}
