package auth

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	rerrors "github.com/tessro/riffbar/internal/errors"
)

const (
	// DefaultRefreshInterval is the proactive refresh period.
	DefaultRefreshInterval = 30 * time.Minute

	// DefaultRefreshTimeout bounds a single refresh request.
	DefaultRefreshTimeout = 15 * time.Second
)

// State is the credential state of the backend session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Refreshing
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Session is the subset of the backend the guard talks to.
type Session interface {
	AuthStatus(ctx context.Context) (bool, error)
	RefreshAuth(ctx context.Context) error
}

// Listener observes state transitions. It is called outside the guard's
// lock, in registration order.
type Listener func(from, to State)

// flight is one refresh request shared by every caller that asks for a
// refresh while it is outstanding.
type flight struct {
	done    chan struct{}
	err     error
	waiters int
}

// Guard owns the session credential state. At most one refresh request is
// in flight at a time; concurrent callers share its outcome.
type Guard struct {
	session        Session
	store          FlagStore
	logger         *log.Logger
	interval       time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	mu          sync.Mutex
	state       State
	flight      *flight
	lastRefresh time.Time
	listeners   []Listener

	// proactive timer
	baseCtx     context.Context
	timerCancel context.CancelFunc
	timerDone   chan struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithInterval sets the proactive refresh period.
func WithInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithRefreshTimeout bounds each refresh request.
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l.WithPrefix("auth")
		}
	}
}

// WithClock overrides the time source used for LastRefresh.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard whose provisional state comes from the persisted
// flag. Call Probe to confirm it against the backend.
func NewGuard(session Session, store FlagStore, opts ...Option) *Guard {
	g := &Guard{
		session:        session,
		store:          store,
		logger:         log.New(io.Discard),
		interval:       DefaultRefreshInterval,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	authenticated, err := store.Load()
	if err != nil {
		g.logger.Warn("could not read persisted session flag", "err", err)
	}
	if authenticated {
		g.state = Authenticated
	}
	return g
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastRefresh returns when the last successful refresh completed.
func (g *Guard) LastRefresh() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRefresh
}

// Waiters returns how many callers share the in-flight refresh, or 0.
func (g *Guard) Waiters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.flight == nil {
		return 0
	}
	return g.flight.waiters
}

// OnChange registers l for state transitions.
func (g *Guard) OnChange(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// Probe asks the backend whether the session is valid and corrects the
// provisional state. A network failure leaves the state unchanged.
func (g *Guard) Probe(ctx context.Context) (State, error) {
	ok, err := g.session.AuthStatus(ctx)
	if err != nil {
		g.logger.Warn("status probe failed", "err", err)
		return g.State(), err
	}
	g.set(ok)
	return g.State(), nil
}

// LoginCompleted records that the external login flow finished.
func (g *Guard) LoginCompleted() {
	g.set(true)
}

// Logout forgets the session locally.
func (g *Guard) Logout() {
	g.set(false)
}

// set moves between Authenticated and Unauthenticated. It is ignored while
// a refresh is outstanding; the refresh outcome decides.
func (g *Guard) set(authenticated bool) {
	to := Unauthenticated
	if authenticated {
		to = Authenticated
	}

	g.mu.Lock()
	if g.flight != nil {
		g.mu.Unlock()
		return
	}
	from := g.state
	g.state = to
	g.mu.Unlock()

	g.persist(authenticated)
	if to == Authenticated {
		g.arm()
	} else {
		g.disarm()
	}
	if from != to {
		g.notify(from, to)
	}
}

// Refresh renews the session. If a refresh is already in flight the caller
// waits for it instead of issuing another. A failed refresh is terminal:
// the state becomes Unauthenticated until the user logs in again.
//
// ctx only bounds how long this caller waits; the shared request is not
// canceled when one caller gives up.
func (g *Guard) Refresh(ctx context.Context) error {
	g.mu.Lock()
	f := g.flight
	switch {
	case f != nil:
		f.waiters++
		g.mu.Unlock()
	case g.state == Unauthenticated:
		g.mu.Unlock()
		return rerrors.ErrSessionExpired
	default:
		f = &flight{done: make(chan struct{}), waiters: 1}
		g.flight = f
		from := g.state
		g.state = Refreshing
		g.mu.Unlock()

		g.notify(from, Refreshing)
		go g.run(context.WithoutCancel(ctx), f)
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) run(ctx context.Context, f *flight) {
	ctx, cancel := context.WithTimeout(ctx, g.refreshTimeout)
	defer cancel()

	g.logger.Debug("refreshing session")
	err := g.session.RefreshAuth(ctx)

	to := Authenticated
	if err != nil {
		to = Unauthenticated
		f.err = fmt.Errorf("%w: %w", rerrors.ErrSessionExpired, err)
		g.logger.Warn("session refresh failed", "err", err)
	} else {
		g.logger.Info("session refreshed")
	}

	g.mu.Lock()
	g.flight = nil
	g.state = to
	if err == nil {
		g.lastRefresh = g.now()
	}
	g.mu.Unlock()

	g.persist(err == nil)
	if err != nil {
		g.disarm()
	}
	g.notify(Refreshing, to)
	close(f.done)
}

func (g *Guard) persist(authenticated bool) {
	if err := g.store.Save(authenticated); err != nil {
		g.logger.Warn("could not persist session flag", "err", err)
	}
}

func (g *Guard) notify(from, to State) {
	g.mu.Lock()
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	g.logger.Debug("state change", "from", from, "to", to)
	for _, l := range listeners {
		l(from, to)
	}
}

// Start enables the proactive refresh timer. The timer only runs while the
// state is Authenticated and is re-armed when the session comes back.
func (g *Guard) Start(ctx context.Context) {
	g.mu.Lock()
	g.baseCtx = ctx
	g.mu.Unlock()

	if g.State() == Authenticated {
		g.arm()
	}
}

// Stop disables the proactive timer and waits for it to exit.
func (g *Guard) Stop() {
	g.mu.Lock()
	g.baseCtx = nil
	cancel, done := g.timerCancel, g.timerDone
	g.timerCancel, g.timerDone = nil, nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// TimerActive reports whether the proactive timer is armed.
func (g *Guard) TimerActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timerCancel != nil
}

func (g *Guard) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.baseCtx == nil || g.timerCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(g.baseCtx)
	done := make(chan struct{})
	g.timerCancel, g.timerDone = cancel, done
	go g.proactive(ctx, done)
}

// disarm cancels the timer without waiting; it may be called from the
// timer's own refresh.
func (g *Guard) disarm() {
	g.mu.Lock()
	cancel := g.timerCancel
	g.timerCancel, g.timerDone = nil, nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (g *Guard) proactive(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.State() != Authenticated {
				continue
			}
			g.logger.Debug("proactive refresh")
			if err := g.Refresh(ctx); err != nil && !rerrors.IsCanceled(err) {
				return
			}
		}
	}
}

// Refresher renews the session after an authorization failure.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Do runs fn. After an authorization failure it renews the session through
// r and runs fn once more; a failed renewal is returned instead.
func Do(ctx context.Context, r Refresher, fn func(context.Context) error) error {
	err := fn(ctx)
	if r == nil || !rerrors.IsAuthFailure(err) {
		return err
	}
	if rerr := r.Refresh(ctx); rerr != nil {
		return rerr
	}
	return fn(ctx)
}
