package search

import (
	"context"
	"errors"
	"sync/atomic"
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

func track(id string) core.Track {
	return core.Track{ID: id, URI: core.TrackURIPrefix + id, Name: "Song " + id, Artists: []core.Artist{{Name: "Artist"}}}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		results   []core.Track
		want      string
		wantErr   bool
	}{
		{"selection only", "spotify:track:sel", nil, "spotify:track:sel", false},
		{"single result", "", []core.Track{track("a")}, "spotify:track:a", false},
		{"selection beats single result", "spotify:track:sel", []core.Track{track("a")}, "spotify:track:sel", false},
		{"selection beats many results", "spotify:track:sel", []core.Track{track("a"), track("b")}, "spotify:track:sel", false},
		{"ambiguous", "", []core.Track{track("a"), track("b")}, "", true},
		{"nothing", "", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.selection, tt.results)
			if tt.wantErr {
				if !errors.Is(err, rerrors.ErrNoTarget) {
					t.Errorf("ResolveTarget() error = %v, want ErrNoTarget", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInputDebounces(t *testing.T) {
	fake := coretest.New()
	fake.Results = []core.Track{track("a")}
	c := NewCoordinator(fake, WithDebounce(30*time.Millisecond))
	defer c.Close()

	c.Input("r")
	c.Input("ri")
	c.Input("rick")

	require.Eventually(t, func() bool { return len(c.Results()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"rick"}, fake.Searches(), "only the last input is searched")
}

func TestInputTrackURIShortCircuits(t *testing.T) {
	fake := coretest.New()
	c := NewCoordinator(fake, WithDebounce(5*time.Millisecond))
	defer c.Close()

	c.Input("spotify:track:4uLU6hMCjMI75M1A2tKUQC")
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, "spotify:track:4uLU6hMCjMI75M1A2tKUQC", c.Selection())
	assert.Empty(t, fake.Searches())
}

func TestInputEmptyClears(t *testing.T) {
	fake := coretest.New()
	fake.Results = []core.Track{track("a"), track("b")}
	c := NewCoordinator(fake, WithDebounce(0))
	defer c.Close()

	c.Input("something")
	require.Eventually(t, func() bool { return len(c.Results()) == 2 }, time.Second, time.Millisecond)

	c.Input("")
	snap := c.Snapshot()
	assert.Empty(t, snap.Results)
	assert.False(t, snap.ShowResults)
	assert.Empty(t, snap.Selection)
}

func TestTypingClearsSelection(t *testing.T) {
	c := NewCoordinator(coretest.New(), WithDebounce(time.Hour))
	defer c.Close()

	c.Select(track("a"))
	assert.Equal(t, "spotify:track:a", c.Selection())
	assert.Equal(t, "Artist - Song a", c.Snapshot().Query)

	c.Input("other")
	assert.Empty(t, c.Selection())
}

func TestLastQueryWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	fake := coretest.New()
	fake.SearchFunc = func(ctx context.Context, query string, limit int) ([]core.Track, error) {
		if query == "first" {
			<-releaseFirst // ignores cancellation, like a slow backend
			return []core.Track{track("stale")}, nil
		}
		return []core.Track{track("fresh"), track("fresh2")}, nil
	}
	c := NewCoordinator(fake)
	defer c.Close()

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), "first")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return len(fake.Searches()) == 1 }, time.Second, time.Millisecond)

	got, err := c.Search(context.Background(), "second")
	require.NoError(t, err)
	require.Len(t, got, 2)

	close(releaseFirst)
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	results := c.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "fresh", results[0].ID, "a late response for an older query is discarded")
}

func TestSearchErrorReported(t *testing.T) {
	var reported atomic.Int32
	fake := coretest.New()
	fake.SearchFunc = func(ctx context.Context, query string, limit int) ([]core.Track, error) {
		return nil, rerrors.ErrNetworkError
	}
	c := NewCoordinator(fake, WithReporter(func(error) { reported.Add(1) }))
	defer c.Close()

	_, err := c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, rerrors.ErrNetworkError)
	assert.Equal(t, int32(1), reported.Load())
	assert.False(t, c.Snapshot().Searching)
}

func TestCloseCancelsPending(t *testing.T) {
	fake := coretest.New()
	c := NewCoordinator(fake, WithDebounce(10*time.Millisecond))

	c.Input("never sent")
	c.Close()
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, fake.Searches())
}

func newResolver(t *testing.T, fake *coretest.Fake) (*Resolver, *Coordinator, *state.Store) {
	t.Helper()
	store := state.New()
	c := NewCoordinator(fake, WithDebounce(time.Hour))
	t.Cleanup(c.Close)
	guard := auth.NewGuard(fake, auth.NewMemoryStore(true))
	return NewResolver(c, fake, store, guard, nil), c, store
}

func TestEnqueueRefusesWithoutTarget(t *testing.T) {
	fake := coretest.New()
	fake.Results = []core.Track{track("a"), track("b")}
	r, c, store := newResolver(t, fake)

	_, err := c.Search(context.Background(), "ambiguous")
	require.NoError(t, err)

	err = r.Enqueue(context.Background())
	assert.ErrorIs(t, err, rerrors.ErrNoTarget)
	assert.Equal(t, 0, fake.Calls("AddToQueue"), "no request without a target")
	assert.Equal(t, "Please select a track first", store.Message().Text)
}

func TestEnqueueSingleResult(t *testing.T) {
	fake := coretest.New()
	fake.Results = []core.Track{track("only")}
	r, c, store := newResolver(t, fake)

	_, err := c.Search(context.Background(), "unique")
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(context.Background()))
	assert.Equal(t, []string{"spotify:track:only"}, fake.Queued())
	assert.Equal(t, "Track added to queue!", store.Message().Text)

	snap := c.Snapshot()
	assert.Empty(t, snap.Query)
	assert.Empty(t, snap.Results)
	assert.Empty(t, snap.Selection)
}

func TestEnqueueSelectionWins(t *testing.T) {
	fake := coretest.New()
	fake.Results = []core.Track{track("one")}
	r, c, _ := newResolver(t, fake)

	_, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	c.Select(track("chosen"))

	require.NoError(t, r.Enqueue(context.Background()))
	assert.Equal(t, []string{"spotify:track:chosen"}, fake.Queued())
}

func TestEnqueueFailureKeepsSearchState(t *testing.T) {
	fake := coretest.New()
	fake.AddToQueueFunc = func(ctx context.Context, uri string) error {
		return rerrors.ErrNetworkError
	}
	r, c, store := newResolver(t, fake)
	c.Input("spotify:track:abc")

	assert.Error(t, r.Enqueue(context.Background()))
	assert.Equal(t, "spotify:track:abc", c.Selection())
	assert.Equal(t, state.LevelError, store.Message().Level)
}
