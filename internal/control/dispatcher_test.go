package control

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/core/coretest"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/state"
)

var epoch = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func setup(t *testing.T, snap *core.PlaybackSnapshot) (*Dispatcher, *coretest.Fake, *state.Store, *auth.Guard) {
	t.Helper()
	fake := coretest.New()
	store := state.New()
	store.SetClock(func() time.Time { return epoch })
	if snap != nil {
		store.UpdatePlayback(snap, nil)
	}
	guard := auth.NewGuard(fake, auth.NewMemoryStore(true))
	d := New(fake, store, guard, WithClock(func() time.Time { return epoch }))
	return d, fake, store, guard
}

func playingAt(progress time.Duration, isPlaying bool) *core.PlaybackSnapshot {
	return &core.PlaybackSnapshot{
		IsPlaying:  isPlaying,
		ProgressMs: progress.Milliseconds(),
		Track:      &core.Track{ID: "t1", DurationMs: 240_000},
		FetchedAt:  epoch,
	}
}

func TestPauseIsVisibleBeforeResponse(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))

	release := make(chan struct{})
	fake.PauseFunc = func(ctx context.Context) error {
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.Pause(context.Background()) }()

	require.Eventually(t, func() bool { return d.IsPending(PlayPause) }, time.Second, time.Millisecond)
	assert.False(t, store.IsPlaying(), "pause must be visible while the request is in flight")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, store.IsPlaying())
	assert.False(t, d.IsPending(PlayPause))
}

func TestPauseFailureRollsBack(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))
	fake.PauseFunc = func(ctx context.Context) error {
		return fmt.Errorf("GET /control/pause: %w", rerrors.ErrNetworkError)
	}

	err := d.Pause(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsPlaying(), "visible state reverts after failure")

	msg := store.Message()
	assert.Equal(t, state.LevelError, msg.Level)
	assert.NotEmpty(t, msg.Text)
}

func TestFailedResumeAfterPauseKeepsPaused(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))

	require.NoError(t, d.Pause(context.Background()))
	require.False(t, store.IsPlaying())

	fake.ResumeFunc = func(ctx context.Context) error {
		return fmt.Errorf("GET /control/play: %w", rerrors.ErrNetworkError)
	}
	require.Error(t, d.Resume(context.Background()))

	assert.False(t, store.IsPlaying(), "rollback restores the value shown before the resume")
	assert.Equal(t, state.LevelError, store.Message().Level)
}

func TestOverlappingCommandsLastWriteWins(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))

	pauseRelease := make(chan struct{})
	fake.PauseFunc = func(ctx context.Context) error {
		<-pauseRelease
		return errors.New("slow failure")
	}

	done := make(chan error, 1)
	go func() { done <- d.Pause(context.Background()) }()
	require.Eventually(t, func() bool { return !store.IsPlaying() }, time.Second, time.Millisecond)

	// A resume issued after the pause succeeds before the pause fails.
	require.NoError(t, d.Resume(context.Background()))
	close(pauseRelease)
	require.Error(t, <-done)

	assert.True(t, store.IsPlaying(), "the stale pause must not roll back the newer resume")
}

func TestToggle(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))

	require.NoError(t, d.Toggle(context.Background()))
	assert.Equal(t, 1, fake.Calls("Pause"))
	assert.False(t, store.IsPlaying())

	require.NoError(t, d.Toggle(context.Background()))
	assert.Equal(t, 1, fake.Calls("Resume"))
	assert.True(t, store.IsPlaying())
}

func TestCommandRetriedAfterRefresh(t *testing.T) {
	d, fake, store, guard := setup(t, playingAt(0, true))
	calls := 0
	fake.PauseFunc = func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("GET /control/pause: %w", rerrors.ErrUnauthorized)
		}
		return nil
	}

	require.NoError(t, d.Pause(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, fake.Calls("RefreshAuth"))
	assert.Equal(t, auth.Authenticated, guard.State())
	assert.False(t, store.IsPlaying())
}

func TestCommandRefreshFailure(t *testing.T) {
	d, fake, store, guard := setup(t, playingAt(0, true))
	fake.PauseFunc = func(ctx context.Context) error {
		return rerrors.ErrUnauthorized
	}
	fake.RefreshFunc = func(ctx context.Context) error {
		return errors.New("refresh rejected")
	}

	err := d.Pause(context.Background())
	assert.ErrorIs(t, err, rerrors.ErrSessionExpired)
	assert.Equal(t, auth.Unauthenticated, guard.State())
	assert.True(t, store.IsPlaying(), "rolled back")
	assert.Equal(t, 1, fake.Calls("Pause"), "no retry without a session")
}

func TestNextShowsMessage(t *testing.T) {
	d, fake, store, _ := setup(t, playingAt(0, true))

	require.NoError(t, d.Next(context.Background()))
	assert.Equal(t, 1, fake.Calls("Next"))
	assert.Equal(t, state.LevelSuccess, store.Message().Level)
}

func TestOverlappingNextStaysPendingUntilLastAnswer(t *testing.T) {
	d, fake, _, _ := setup(t, playingAt(0, true))

	answers := make(chan chan struct{}, 2)
	fake.NextFunc = func(ctx context.Context) error {
		release := make(chan struct{})
		answers <- release
		<-release
		return nil
	}

	first := make(chan error, 1)
	go func() { first <- d.Next(context.Background()) }()
	releaseFirst := <-answers

	second := make(chan error, 1)
	go func() { second <- d.Next(context.Background()) }()
	releaseSecond := <-answers

	close(releaseFirst)
	require.NoError(t, <-first)
	assert.True(t, d.IsPending(Next), "the second skip is still in flight")

	close(releaseSecond)
	require.NoError(t, <-second)
	assert.False(t, d.IsPending(Next))
}

func TestPreviousThreshold(t *testing.T) {
	tests := []struct {
		name         string
		snap         *core.PlaybackSnapshot
		wantSeek     bool
		wantPrevious bool
	}{
		{"no snapshot", nil, false, true},
		{"early in track", playingAt(3*time.Second, false), false, true},
		{"just under threshold", playingAt(9999*time.Millisecond, false), false, true},
		{"at threshold", playingAt(10*time.Second, false), true, false},
		{"well into track", playingAt(90*time.Second, true), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, fake, _, _ := setup(t, tt.snap)

			require.NoError(t, d.Previous(context.Background()))
			assert.Equal(t, tt.wantSeek, fake.Calls("Seek") == 1)
			assert.Equal(t, tt.wantPrevious, fake.Calls("Previous") == 1)
			if tt.wantSeek {
				assert.Equal(t, []int64{0}, fake.Seeks())
			}
		})
	}
}

func TestPreviousUsesExtrapolatedProgress(t *testing.T) {
	snap := playingAt(8*time.Second, true)
	snap.FetchedAt = epoch.Add(-5 * time.Second)
	d, fake, _, _ := setup(t, snap)

	require.NoError(t, d.Previous(context.Background()))
	assert.Equal(t, 1, fake.Calls("Seek"), "8s fetched 5s ago while playing is past the threshold")
}

func TestPreviousMarkersHaveDistinctMessages(t *testing.T) {
	messages := map[string]bool{}
	for _, marker := range []error{rerrors.ErrNoPreviousTrack, rerrors.ErrPreviousForbidden} {
		d, fake, store, _ := setup(t, playingAt(0, true))
		fake.PreviousFunc = func(ctx context.Context) error { return marker }

		err := d.Previous(context.Background())
		assert.ErrorIs(t, err, marker)
		msg := store.Message()
		assert.NotEmpty(t, msg.Text)
		messages[msg.Text] = true
	}
	assert.Len(t, messages, 2)
}

func TestSeek(t *testing.T) {
	d, fake, _, _ := setup(t, playingAt(0, true))

	require.NoError(t, d.Seek(context.Background(), 95*time.Second))
	assert.Equal(t, []int64{95_000}, fake.Seeks())
	assert.Empty(t, d.Pending())
}
