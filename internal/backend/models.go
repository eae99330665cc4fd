package backend

import (
	"time"

	"github.com/tessro/riffbar/internal/core"
)

// Image represents an album artwork rendition.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a credited artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album represents the album a track belongs to.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URI    string  `json:"uri"`
	Images []Image `json:"images"`
}

// Track is the track payload shared by playback, queue and search responses.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int64    `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	PreviewURL string   `json:"preview_url"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// PlaybackState is the response from the player endpoints.
type PlaybackState struct {
	IsPlaying            bool   `json:"is_playing"`
	ProgressMS           int64  `json:"progress_ms"`
	Timestamp            int64  `json:"timestamp"`
	CurrentlyPlayingType string `json:"currently_playing_type"`
	Item                 *Track `json:"item"`
}

// Queue is the response from the queue endpoints.
type Queue struct {
	CurrentlyPlaying *Track  `json:"currently_playing"`
	Queue            []Track `json:"queue"`
}

// AuthStatus is the response from the status probe.
type AuthStatus struct {
	Authenticated   bool `json:"authenticated"`
	HasAccessToken  bool `json:"hasAccessToken"`
	HasRefreshToken bool `json:"hasRefreshToken"`
}

// ConvertPlayback converts a playback response to a core snapshot stamped
// with fetchedAt.
func ConvertPlayback(p *PlaybackState, fetchedAt time.Time) *core.PlaybackSnapshot {
	if p == nil {
		return nil
	}
	return &core.PlaybackSnapshot{
		IsPlaying:  p.IsPlaying,
		ProgressMs: p.ProgressMS,
		Track:      ConvertTrack(p.Item),
		FetchedAt:  fetchedAt,
	}
}

// ConvertQueue converts a queue response to a core snapshot.
func ConvertQueue(q *Queue) *core.QueueSnapshot {
	if q == nil {
		return nil
	}
	out := &core.QueueSnapshot{
		Queue: make([]core.QueueItem, 0, len(q.Queue)),
	}
	if q.CurrentlyPlaying != nil {
		item := convertQueueItem(*q.CurrentlyPlaying)
		out.CurrentlyPlaying = &item
	}
	for _, t := range q.Queue {
		out.Queue = append(out.Queue, convertQueueItem(t))
	}
	return out
}

// ConvertTrack converts a wire track to a core track.
func ConvertTrack(t *Track) *core.Track {
	if t == nil {
		return nil
	}
	return &core.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artists:    convertArtists(t.Artists),
		DurationMs: t.DurationMS,
		Album:      convertAlbum(t.Album),
	}
}

// ConvertTracks converts search results, preserving order.
func ConvertTracks(tracks []Track) []core.Track {
	out := make([]core.Track, 0, len(tracks))
	for i := range tracks {
		out = append(out, *ConvertTrack(&tracks[i]))
	}
	return out
}

func convertQueueItem(t Track) core.QueueItem {
	return core.QueueItem{
		URI:        t.URI,
		Name:       t.Name,
		Artists:    convertArtists(t.Artists),
		DurationMs: t.DurationMS,
		Album:      convertAlbum(t.Album),
	}
}

func convertArtists(artists []Artist) []core.Artist {
	out := make([]core.Artist, len(artists))
	for i, a := range artists {
		out[i] = core.Artist{Name: a.Name}
	}
	return out
}

func convertAlbum(a Album) core.Album {
	images := make([]core.Image, len(a.Images))
	for i, img := range a.Images {
		images[i] = core.Image{URL: img.URL, Height: img.Height, Width: img.Width}
	}
	return core.Album{Name: a.Name, Images: images}
}
