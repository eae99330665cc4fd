package search

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/state"
)

// ConfirmationTTL is how long the "added" confirmation stays visible.
const ConfirmationTTL = 3 * time.Second

// ResolveTarget picks the track an enqueue acts on. An explicit selection
// always wins; otherwise a lone search result is unambiguous. Anything
// else is refused with errors.ErrNoTarget.
func ResolveTarget(selection string, results []core.Track) (string, error) {
	if selection != "" {
		return selection, nil
	}
	if len(results) == 1 && results[0].URI != "" {
		return results[0].URI, nil
	}
	return "", rerrors.ErrNoTarget
}

// Queuer appends a track to the remote queue.
type Queuer interface {
	AddToQueue(ctx context.Context, trackURI string) error
}

// Resolver enqueues the coordinator's current target.
type Resolver struct {
	coord  *Coordinator
	queuer Queuer
	store  *state.Store
	guard  auth.Refresher
	logger *log.Logger
}

// NewResolver creates a resolver.
func NewResolver(coord *Coordinator, queuer Queuer, store *state.Store, guard auth.Refresher, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{
		coord:  coord,
		queuer: queuer,
		store:  store,
		guard:  guard,
		logger: logger.WithPrefix("queue"),
	}
}

// Enqueue adds the resolved target to the queue. Without a target it shows
// "select a track first" and makes no request. On success the search state
// is cleared and a confirmation is shown.
func (r *Resolver) Enqueue(ctx context.Context) error {
	snap := r.coord.Snapshot()
	uri, err := ResolveTarget(snap.Selection, snap.Results)
	if err != nil {
		r.store.SetMessage(rerrors.UserMessage(err), state.LevelError, ConfirmationTTL)
		return err
	}

	err = auth.Do(ctx, r.guard, func(ctx context.Context) error {
		return r.queuer.AddToQueue(ctx, uri)
	})
	if err != nil {
		r.logger.Warn("add to queue failed", "uri", uri, "err", err)
		if !errors.Is(err, rerrors.ErrSessionExpired) && !rerrors.IsCanceled(err) {
			r.store.SetMessage(rerrors.UserMessage(err), state.LevelError, ConfirmationTTL)
		}
		return err
	}

	r.logger.Info("added to queue", "uri", uri)
	r.coord.Clear()
	r.store.SetMessage("Track added to queue!", state.LevelSuccess, ConfirmationTTL)
	return nil
}
