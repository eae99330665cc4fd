// Package control issues transport commands with optimistic feedback.
package control

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/state"
)

const (
	// DefaultRestartThreshold is the position past which "previous" restarts
	// the current track instead of going back.
	DefaultRestartThreshold = 10 * time.Second

	// DefaultMessageTTL is how long command feedback stays visible.
	DefaultMessageTTL = 3 * time.Second
)

// Affordance names a control that can have a command in flight.
type Affordance string

const (
	PlayPause Affordance = "playpause"
	Next      Affordance = "next"
	Previous  Affordance = "previous"
	Seek      Affordance = "seek"
)

// PendingCommand is a command issued but not yet answered. Generation is
// the store override a play/pause command owns, zero for the others.
type PendingCommand struct {
	Name       string
	Generation uint64
	IssuedAt   time.Time

	token uint64
}

// Remote is the subset of the backend the dispatcher drives.
type Remote interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int64) error
}

// Dispatcher sends commands and reflects their outcome in the store.
type Dispatcher struct {
	remote    Remote
	store     *state.Store
	guard     auth.Refresher
	logger    *log.Logger
	threshold time.Duration
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[Affordance]PendingCommand
	tokens  uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRestartThreshold sets the restart-versus-previous cutoff.
func WithRestartThreshold(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.threshold = d
		}
	}
}

// WithMessageTTL sets how long feedback messages stay visible.
func WithMessageTTL(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(x *Dispatcher) { x.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(x *Dispatcher) {
		if l != nil {
			x.logger = l.WithPrefix("control")
		}
	}
}

// New creates a dispatcher.
func New(remote Remote, store *state.Store, guard auth.Refresher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		remote:    remote,
		store:     store,
		guard:     guard,
		logger:    log.New(io.Discard),
		threshold: DefaultRestartThreshold,
		ttl:       DefaultMessageTTL,
		now:       time.Now,
		pending:   make(map[Affordance]PendingCommand),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pending returns the commands currently in flight.
func (d *Dispatcher) Pending() map[Affordance]PendingCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Affordance]PendingCommand, len(d.pending))
	for k, v := range d.pending {
		out[k] = v
	}
	return out
}

// IsPending reports whether a has a command in flight.
func (d *Dispatcher) IsPending(a Affordance) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[a]
	return ok
}

// Pause shows playback as paused at once, then asks the backend to pause.
// On failure the visible state is rolled back and an error is shown.
func (d *Dispatcher) Pause(ctx context.Context) error {
	return d.setPlaying(ctx, false)
}

// Resume is the inverse of Pause.
func (d *Dispatcher) Resume(ctx context.Context) error {
	return d.setPlaying(ctx, true)
}

// Toggle pauses when playback is visibly playing, otherwise resumes.
func (d *Dispatcher) Toggle(ctx context.Context) error {
	if d.store.IsPlaying() {
		return d.Pause(ctx)
	}
	return d.Resume(ctx)
}

func (d *Dispatcher) setPlaying(ctx context.Context, playing bool) error {
	name, send := "pause", d.remote.Pause
	if playing {
		name, send = "resume", d.remote.Resume
	}

	gen := d.store.ApplyOptimistic(playing)
	token := d.begin(PlayPause, name, gen)
	defer d.end(PlayPause, token)

	if err := d.call(ctx, send); err != nil {
		if d.store.Rollback(gen) {
			d.logger.Debug("rolled back", "command", name, "generation", gen)
		}
		d.report(name, err)
		return err
	}

	d.store.Settle(gen)
	return nil
}

// Next skips to the next track.
func (d *Dispatcher) Next(ctx context.Context) error {
	token := d.begin(Next, "next", 0)
	defer d.end(Next, token)

	if err := d.call(ctx, d.remote.Next); err != nil {
		d.report("next", err)
		return err
	}
	d.store.SetMessage("Skipped to next track", state.LevelSuccess, d.ttl)
	return nil
}

// Previous restarts the current track once it has played past the
// threshold, otherwise goes back to the previous track.
func (d *Dispatcher) Previous(ctx context.Context) error {
	position := d.store.Playback().ProgressAt(d.now())
	if position >= d.threshold {
		return d.Restart(ctx)
	}

	token := d.begin(Previous, "previous", 0)
	defer d.end(Previous, token)

	err := d.call(ctx, d.remote.Previous)
	switch {
	case errors.Is(err, rerrors.ErrNoPreviousTrack), errors.Is(err, rerrors.ErrPreviousForbidden):
		d.store.SetMessage(rerrors.UserMessage(err), state.LevelInfo, d.ttl)
		return err
	case err != nil:
		d.report("previous", err)
		return err
	}
	d.store.SetMessage("Previous track", state.LevelSuccess, d.ttl)
	return nil
}

// Restart seeks to the start of the current track.
func (d *Dispatcher) Restart(ctx context.Context) error {
	if err := d.seek(ctx, 0); err != nil {
		return err
	}
	d.store.SetMessage("Restarted track", state.LevelSuccess, d.ttl)
	return nil
}

// Seek moves playback to position.
func (d *Dispatcher) Seek(ctx context.Context, position time.Duration) error {
	return d.seek(ctx, position)
}

func (d *Dispatcher) seek(ctx context.Context, position time.Duration) error {
	token := d.begin(Seek, "seek", 0)
	defer d.end(Seek, token)

	ms := position.Milliseconds()
	err := d.call(ctx, func(ctx context.Context) error {
		return d.remote.Seek(ctx, ms)
	})
	if err != nil {
		d.report("seek", err)
	}
	return err
}

// call runs fn, renewing the session and retrying once after an
// authorization failure.
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) error) error {
	return auth.Do(ctx, d.guard, fn)
}

// report turns a failure into a message. An expired session already has
// its own message, so it is left in place.
func (d *Dispatcher) report(name string, err error) {
	d.logger.Warn("command failed", "command", name, "err", err)

	switch {
	case rerrors.IsCanceled(err):
		return
	case errors.Is(err, rerrors.ErrSessionExpired):
		return
	}
	d.store.SetMessage(rerrors.UserMessage(err), state.LevelError, d.ttl)
}

// begin records a command on a and returns the token that ends it.
func (d *Dispatcher) begin(a Affordance, name string, gen uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens++
	d.pending[a] = PendingCommand{Name: name, Generation: gen, IssuedAt: d.now(), token: d.tokens}
	return d.tokens
}

// end clears a's pending command unless a newer one replaced it.
func (d *Dispatcher) end(a Affordance, token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[a]; ok && p.token == token {
		delete(d.pending, a)
	}
}
