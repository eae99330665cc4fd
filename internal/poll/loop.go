package poll

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	rerrors "github.com/tessro/riffbar/internal/errors"
)

// DefaultInterval is the delay between ticks.
const DefaultInterval = time.Second

// Guard is the credential state the loop consults.
type Guard interface {
	State() auth.State
	Refresh(ctx context.Context) error
}

// Loop polls a Source and feeds a Sink. The next tick is scheduled only
// after the previous one completes, so slow responses stretch the period
// rather than stacking requests.
type Loop struct {
	source   Source
	sink     Sink
	guard    Guard
	interval time.Duration
	logger   *log.Logger
	onError  func(error)

	mu     sync.Mutex
	active *run
	ticks  atomic.Int64
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) LoopOption {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg.WithPrefix("poll")
		}
	}
}

// WithErrorHandler receives transport failures from ticks.
func WithErrorHandler(fn func(error)) LoopOption {
	return func(l *Loop) { l.onError = fn }
}

// NewLoop creates a stopped loop.
func NewLoop(source Source, sink Sink, guard Guard, opts ...LoopOption) *Loop {
	l := &Loop{
		source:   source,
		sink:     sink,
		guard:    guard,
		interval: DefaultInterval,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins polling with an immediate first tick. It does nothing if
// the loop is already running.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	l.active = r
	go l.loop(ctx, r)
}

// Stop cancels polling and waits for the in-progress tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	r := l.active
	l.active = nil
	l.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}
}

// Suspend cancels polling without waiting. It is safe to call from code
// running inside a tick, such as a credential state listener.
func (l *Loop) Suspend() {
	l.mu.Lock()
	r := l.active
	l.active = nil
	l.mu.Unlock()

	if r != nil {
		r.cancel()
	}
}

// Running reports whether the loop is armed.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active != nil
}

// Ticks returns how many ticks have issued requests.
func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

func (l *Loop) loop(ctx context.Context, r *run) {
	defer close(r.done)
	defer l.release(r)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !l.Tick(ctx) {
			l.logger.Info("polling stopped")
			return
		}
		if l.guard.State() == auth.Unauthenticated {
			l.logger.Info("session ended, polling stopped")
			return
		}
		timer.Reset(l.interval)
	}
}

// release clears r if it is still the current run.
func (l *Loop) release(r *run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == r {
		l.active = nil
	}
}

// Tick performs one poll: playback first, then the queue. It returns false
// when the loop must not be rescheduled. While a refresh is in flight the
// tick is skipped.
func (l *Loop) Tick(ctx context.Context) bool {
	switch l.guard.State() {
	case auth.Refreshing:
		l.logger.Debug("refresh in flight, skipping tick")
		return true
	case auth.Unauthenticated:
		return false
	}
	l.ticks.Add(1)

	snap, err := l.source.Playback(ctx)
	if err != nil {
		if !l.handle(ctx, "playback", err) {
			return false
		}
	} else if l.sink.ApplyPlayback(snap) {
		l.logger.Debug("playback changed", "track", snap.TrackID(), "playing", snap.Playing())
	}

	q, err := l.source.Queue(ctx)
	if err != nil {
		return l.handle(ctx, "queue", err)
	}
	l.sink.ApplyQueue(q)
	return true
}

// handle reacts to a failed fetch and reports whether polling may go on.
func (l *Loop) handle(ctx context.Context, what string, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case rerrors.IsAuthFailure(err):
		l.logger.Debug("authorization failure, refreshing", "fetch", what)
		if rerr := l.guard.Refresh(ctx); rerr != nil {
			l.logger.Warn("refresh failed", "err", rerr)
			return false
		}
		return true
	default:
		l.logger.Debug("fetch failed", "fetch", what, "err", err)
		if l.onError != nil {
			l.onError(err)
		}
		return true
	}
}
