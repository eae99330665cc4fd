package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
)

// Markers returned in a 200 body by the previous-track endpoint.
const (
	markerNoPrevious = "NO_PREVIOUS"
	markerForbidden  = "FORBIDDEN"
)

// AuthStatus probes whether the backend holds a valid session. An
// authorization failure status is reported as unauthenticated, not an error.
func (c *Client) AuthStatus(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/auth/status")
	if err != nil {
		if rerrors.IsAuthFailure(err) {
			return false, nil
		}
		return false, err
	}

	var status AuthStatus
	if !c.decode("/auth/status", body, &status) {
		return false, nil
	}
	return status.Authenticated, nil
}

// RefreshAuth asks the backend to renew its credentials.
func (c *Client) RefreshAuth(ctx context.Context) error {
	if _, err := c.post(ctx, "/auth/refresh"); err != nil {
		return fmt.Errorf("%w: %w", rerrors.ErrRefreshFailed, err)
	}
	return nil
}

// Playback returns the current playback snapshot, or nil if nothing is
// playing or the body could not be parsed.
func (c *Client) Playback(ctx context.Context) (*core.PlaybackSnapshot, error) {
	path := "/player"
	if c.cached {
		path = "/cached/playback"
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var state PlaybackState
	if !c.decode(path, body, &state) {
		return nil, nil
	}
	return ConvertPlayback(&state, c.now()), nil
}

// Queue returns the upcoming queue, or nil when none is available.
func (c *Client) Queue(ctx context.Context) (*core.QueueSnapshot, error) {
	path := "/queue"
	if c.cached {
		path = "/cached/queue"
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var q Queue
	if !c.decode(path, body, &q) {
		return nil, nil
	}
	return ConvertQueue(&q), nil
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.get(ctx, "/control/pause")
	return err
}

// Resume resumes playback.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.get(ctx, "/control/resume")
	return err
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	_, err := c.get(ctx, "/control/next")
	return err
}

// Previous skips to the previous track. The endpoint answers 200 with a
// marker body when it cannot go back.
func (c *Client) Previous(ctx context.Context) error {
	body, err := c.get(ctx, "/control/previous")
	if err != nil {
		return err
	}

	switch strings.TrimSpace(string(body)) {
	case markerNoPrevious:
		return rerrors.ErrNoPreviousTrack
	case markerForbidden:
		return rerrors.ErrPreviousForbidden
	}
	return nil
}

// Seek moves the playback position.
func (c *Client) Seek(ctx context.Context, positionMs int64) error {
	if positionMs < 0 {
		positionMs = 0
	}
	params := url.Values{"position": {strconv.FormatInt(positionMs, 10)}}
	_, err := c.get(ctx, BuildURL("/control/seek", params))
	return err
}

// AddToQueue appends a track to the queue.
func (c *Client) AddToQueue(ctx context.Context, trackURI string) error {
	if trackURI == "" {
		return rerrors.ErrNoTarget
	}
	params := url.Values{"trackUri": {trackURI}}
	_, err := c.get(ctx, BuildURL("/control/queue/add", params))
	return err
}

// Search returns tracks matching query in backend order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]core.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	params := url.Values{"query": {query}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, BuildURL("/search", params))
	if err != nil {
		return nil, err
	}

	var tracks []Track
	if !c.decode("/search", body, &tracks) {
		return nil, nil
	}
	return ConvertTracks(tracks), nil
}

var _ core.Remote = (*Client)(nil)
