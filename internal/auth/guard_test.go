package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/riffbar/internal/core/coretest"
	rerrors "github.com/tessro/riffbar/internal/errors"
)

type transitions struct {
	mu  sync.Mutex
	got [][2]State
}

func (tr *transitions) record(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, [2]State{from, to})
}

func (tr *transitions) list() [][2]State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([][2]State(nil), tr.got...)
}

func TestInitialStateFromFlag(t *testing.T) {
	assert.Equal(t, Authenticated, NewGuard(coretest.New(), NewMemoryStore(true)).State())
	assert.Equal(t, Unauthenticated, NewGuard(coretest.New(), NewMemoryStore(false)).State())
}

func TestProbe(t *testing.T) {
	fake := coretest.New()
	fake.Authenticated = false
	store := NewMemoryStore(true)
	g := NewGuard(fake, store)

	state, err := g.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, state)

	persisted, _ := store.Load()
	assert.False(t, persisted)
}

func TestProbeNetworkErrorKeepsState(t *testing.T) {
	fake := coretest.New()
	fake.AuthStatusFunc = func(ctx context.Context) (bool, error) {
		return false, rerrors.ErrNetworkError
	}
	g := NewGuard(fake, NewMemoryStore(true))

	state, err := g.Probe(context.Background())
	assert.ErrorIs(t, err, rerrors.ErrNetworkError)
	assert.Equal(t, Authenticated, state)
}

func TestRefreshSuccess(t *testing.T) {
	fake := coretest.New()
	store := NewMemoryStore(true)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g := NewGuard(fake, store, WithClock(func() time.Time { return now }))

	var tr transitions
	g.OnChange(tr.record)

	require.NoError(t, g.Refresh(context.Background()))
	assert.Equal(t, Authenticated, g.State())
	assert.Equal(t, now, g.LastRefresh())
	assert.Equal(t, [][2]State{
		{Authenticated, Refreshing},
		{Refreshing, Authenticated},
	}, tr.list())

	persisted, _ := store.Load()
	assert.True(t, persisted)
}

func TestRefreshFailureIsTerminal(t *testing.T) {
	fake := coretest.New()
	fake.RefreshFunc = func(ctx context.Context) error {
		return errors.New("status 401")
	}
	store := NewMemoryStore(true)
	g := NewGuard(fake, store)

	var tr transitions
	g.OnChange(tr.record)

	err := g.Refresh(context.Background())
	assert.ErrorIs(t, err, rerrors.ErrSessionExpired)
	assert.Equal(t, Unauthenticated, g.State())
	assert.Equal(t, [2]State{Refreshing, Unauthenticated}, tr.list()[1])

	persisted, _ := store.Load()
	assert.False(t, persisted)

	// No automatic retry: a later call fails fast without a request.
	assert.ErrorIs(t, g.Refresh(context.Background()), rerrors.ErrSessionExpired)
	assert.Equal(t, 1, fake.Calls("RefreshAuth"))
}

func TestRefreshWhenUnauthenticated(t *testing.T) {
	fake := coretest.New()
	g := NewGuard(fake, NewMemoryStore(false))

	assert.ErrorIs(t, g.Refresh(context.Background()), rerrors.ErrSessionExpired)
	assert.Equal(t, 0, fake.Calls("RefreshAuth"))
}

func TestConcurrentRefreshSharesOneRequest(t *testing.T) {
	tests := []struct {
		name    string
		outcome error
	}{
		{"success", nil},
		{"failure", errors.New("refresh rejected")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			fake := coretest.New()
			fake.RefreshFunc = func(ctx context.Context) error {
				<-release
				return tt.outcome
			}
			g := NewGuard(fake, NewMemoryStore(true))

			const callers = 10
			errs := make([]error, callers)
			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = g.Refresh(context.Background())
				}()
			}

			require.Eventually(t, func() bool { return g.Waiters() == callers },
				time.Second, 5*time.Millisecond)
			assert.Equal(t, Refreshing, g.State())
			close(release)
			wg.Wait()

			assert.Equal(t, 1, fake.Calls("RefreshAuth"))
			for _, err := range errs {
				if tt.outcome == nil {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, rerrors.ErrSessionExpired)
				}
			}
		})
	}
}

func TestRefreshSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	fake := coretest.New()
	fake.RefreshFunc = func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g := NewGuard(fake, NewMemoryStore(true))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- g.Refresh(ctx) }()

	require.Eventually(t, func() bool { return g.Waiters() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return g.State() == Authenticated }, time.Second, 5*time.Millisecond)
}

func TestLoginCompleted(t *testing.T) {
	g := NewGuard(coretest.New(), NewMemoryStore(false))
	var tr transitions
	g.OnChange(tr.record)

	g.LoginCompleted()
	assert.Equal(t, Authenticated, g.State())
	assert.Equal(t, [][2]State{{Unauthenticated, Authenticated}}, tr.list())

	// Repeated completion is not a transition.
	g.LoginCompleted()
	assert.Len(t, tr.list(), 1)
}

func TestProactiveRefresh(t *testing.T) {
	fake := coretest.New()
	g := NewGuard(fake, NewMemoryStore(true), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)
	defer g.Stop()

	require.Eventually(t, func() bool { return fake.Calls("RefreshAuth") >= 2 },
		time.Second, 5*time.Millisecond)
	assert.True(t, g.TimerActive())
}

func TestProactiveTimerStopsOnFailure(t *testing.T) {
	fake := coretest.New()
	fake.RefreshFunc = func(ctx context.Context) error {
		return errors.New("expired")
	}
	g := NewGuard(fake, NewMemoryStore(true), WithInterval(10*time.Millisecond))

	g.Start(context.Background())
	defer g.Stop()

	require.Eventually(t, func() bool { return g.State() == Unauthenticated },
		time.Second, 5*time.Millisecond)
	assert.False(t, g.TimerActive())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fake.Calls("RefreshAuth"))
}

func TestProactiveTimerNotArmedWhileUnauthenticated(t *testing.T) {
	fake := coretest.New()
	g := NewGuard(fake, NewMemoryStore(false), WithInterval(10*time.Millisecond))

	g.Start(context.Background())
	defer g.Stop()
	assert.False(t, g.TimerActive())

	g.LoginCompleted()
	assert.True(t, g.TimerActive())
	require.Eventually(t, func() bool { return fake.Calls("RefreshAuth") >= 1 },
		time.Second, 5*time.Millisecond)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.False(t, got, "missing file reads as unauthenticated")
	assert.True(t, s.ModTime().IsZero())

	require.NoError(t, s.Save(true))
	assert.False(t, s.ModTime().IsZero())
	got, err = s.Load()
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	got, _ = s.Load()
	assert.False(t, got)
}
