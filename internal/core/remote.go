package core

import "context"

// Remote defines the backend operations the client consumes.
// Authorization failures surface as errors matching errors.ErrUnauthorized.
type Remote interface {
	// Session
	AuthStatus(ctx context.Context) (bool, error)
	RefreshAuth(ctx context.Context) error

	// State queries. A nil snapshot with a nil error means "no data".
	Playback(ctx context.Context) (*PlaybackSnapshot, error)
	Queue(ctx context.Context) (*QueueSnapshot, error)

	// Transport control
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, positionMs int64) error

	// Queue and search
	AddToQueue(ctx context.Context, trackURI string) error
	Search(ctx context.Context, query string, limit int) ([]Track, error)
}
