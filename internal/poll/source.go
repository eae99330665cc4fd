package poll

import (
	"context"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/state"
)

// Source fetches authoritative snapshots.
type Source interface {
	Playback(ctx context.Context) (*core.PlaybackSnapshot, error)
	Queue(ctx context.Context) (*core.QueueSnapshot, error)
}

// Sink receives authoritative snapshots from any producer: the poll loop
// or a push connection.
type Sink interface {
	// ApplyPlayback stores next and reports whether it was published as a change.
	ApplyPlayback(next *core.PlaybackSnapshot) bool
	ApplyQueue(next *core.QueueSnapshot)
}

// Reconciler is the Sink that feeds the state store through the change
// detector.
type Reconciler struct {
	store *state.Store
}

// NewReconciler creates a reconciler writing to store.
func NewReconciler(store *state.Store) *Reconciler {
	return &Reconciler{store: store}
}

// ApplyPlayback compares next against the visible identity and publishes
// it when the track or play state differs.
func (r *Reconciler) ApplyPlayback(next *core.PlaybackSnapshot) bool {
	return r.store.UpdatePlayback(next, func(trackID string, playing bool) bool {
		return Changed(Identity{TrackID: trackID, IsPlaying: playing}, next)
	})
}

// ApplyQueue always republishes; the queue has no cheap identity check.
func (r *Reconciler) ApplyQueue(next *core.QueueSnapshot) {
	r.store.ReplaceQueue(next)
}
