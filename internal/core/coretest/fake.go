// Package coretest provides a scriptable in-memory core.Remote for tests.
package coretest

import (
	"context"
	"sync"

	"github.com/tessro/riffbar/internal/core"
)

// Fake implements core.Remote. Each operation calls the matching func field
// when set; otherwise it returns the stored snapshot or nil. Calls are
// counted by operation name.
type Fake struct {
	mu sync.Mutex

	Authenticated bool
	PlaybackState *core.PlaybackSnapshot
	QueueState    *core.QueueSnapshot
	Results       []core.Track

	AuthStatusFunc  func(ctx context.Context) (bool, error)
	RefreshFunc     func(ctx context.Context) error
	PlaybackFunc    func(ctx context.Context) (*core.PlaybackSnapshot, error)
	QueueFunc       func(ctx context.Context) (*core.QueueSnapshot, error)
	PauseFunc       func(ctx context.Context) error
	ResumeFunc      func(ctx context.Context) error
	NextFunc        func(ctx context.Context) error
	PreviousFunc    func(ctx context.Context) error
	SeekFunc        func(ctx context.Context, positionMs int64) error
	AddToQueueFunc  func(ctx context.Context, uri string) error
	SearchFunc      func(ctx context.Context, query string, limit int) ([]core.Track, error)

	calls    map[string]int
	queued   []string
	seeks    []int64
	searches []string
}

// New returns an authenticated Fake with no playback.
func New() *Fake {
	return &Fake{Authenticated: true}
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Queued returns the URIs passed to AddToQueue, in order.
func (f *Fake) Queued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queued...)
}

// Seeks returns the positions passed to Seek, in order.
func (f *Fake) Seeks() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.seeks...)
}

// Searches returns the queries passed to Search, in order.
func (f *Fake) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

// SetPlayback replaces the stored playback snapshot.
func (f *Fake) SetPlayback(s *core.PlaybackSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PlaybackState = s
}

// SetQueue replaces the stored queue snapshot.
func (f *Fake) SetQueue(q *core.QueueSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueueState = q
}

func (f *Fake) AuthStatus(ctx context.Context) (bool, error) {
	f.record("AuthStatus")
	if f.AuthStatusFunc != nil {
		return f.AuthStatusFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Authenticated, nil
}

func (f *Fake) RefreshAuth(ctx context.Context) error {
	f.record("RefreshAuth")
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}
	return nil
}

func (f *Fake) Playback(ctx context.Context) (*core.PlaybackSnapshot, error) {
	f.record("Playback")
	if f.PlaybackFunc != nil {
		return f.PlaybackFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PlaybackState.Clone(), nil
}

func (f *Fake) Queue(ctx context.Context) (*core.QueueSnapshot, error) {
	f.record("Queue")
	if f.QueueFunc != nil {
		return f.QueueFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.QueueState, nil
}

func (f *Fake) Pause(ctx context.Context) error {
	f.record("Pause")
	if f.PauseFunc != nil {
		return f.PauseFunc(ctx)
	}
	return nil
}

func (f *Fake) Resume(ctx context.Context) error {
	f.record("Resume")
	if f.ResumeFunc != nil {
		return f.ResumeFunc(ctx)
	}
	return nil
}

func (f *Fake) Next(ctx context.Context) error {
	f.record("Next")
	if f.NextFunc != nil {
		return f.NextFunc(ctx)
	}
	return nil
}

func (f *Fake) Previous(ctx context.Context) error {
	f.record("Previous")
	if f.PreviousFunc != nil {
		return f.PreviousFunc(ctx)
	}
	return nil
}

func (f *Fake) Seek(ctx context.Context, positionMs int64) error {
	f.record("Seek")
	f.mu.Lock()
	f.seeks = append(f.seeks, positionMs)
	f.mu.Unlock()
	if f.SeekFunc != nil {
		return f.SeekFunc(ctx, positionMs)
	}
	return nil
}

func (f *Fake) AddToQueue(ctx context.Context, uri string) error {
	f.record("AddToQueue")
	f.mu.Lock()
	f.queued = append(f.queued, uri)
	f.mu.Unlock()
	if f.AddToQueueFunc != nil {
		return f.AddToQueueFunc(ctx, uri)
	}
	return nil
}

func (f *Fake) Search(ctx context.Context, query string, limit int) ([]core.Track, error) {
	f.record("Search")
	f.mu.Lock()
	f.searches = append(f.searches, query)
	results := f.Results
	f.mu.Unlock()
	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, query, limit)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

var _ core.Remote = (*Fake)(nil)
