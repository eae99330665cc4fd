package core

import (
	"strings"
	"time"
)

// TrackURIPrefix identifies a track resource identifier that can be queued
// without a search.
const TrackURIPrefix = "spotify:track:"

// Artist is a credited performer.
type Artist struct {
	Name string `json:"name"`
}

// Image is one rendition of album artwork.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Album groups the artwork for a track.
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// ArtURL returns a medium-sized image (250-350px high) if one exists,
// otherwise the first image, or "" when there is no artwork.
func (a Album) ArtURL() string {
	for _, img := range a.Images {
		if img.Height >= 250 && img.Height <= 350 {
			return img.URL
		}
	}
	if len(a.Images) > 0 {
		return a.Images[0].URL
	}
	return ""
}

// Track represents a playable audio track.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	DurationMs int64    `json:"duration_ms"`
	Album      Album    `json:"album"`
}

// ArtistNames joins the artist names in credit order.
func (t *Track) ArtistNames() string {
	if t == nil {
		return ""
	}
	return joinArtists(t.Artists)
}

// Duration returns the track length.
func (t *Track) Duration() time.Duration {
	if t == nil {
		return 0
	}
	return time.Duration(t.DurationMs) * time.Millisecond
}

// Label formats the track as "Artist, Artist - Title".
func (t *Track) Label() string {
	if t == nil {
		return ""
	}
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.ArtistNames() + " - " + t.Name
}

// IsTrackURI reports whether s is a track resource identifier.
func IsTrackURI(s string) bool {
	return strings.HasPrefix(s, TrackURIPrefix) && len(s) > len(TrackURIPrefix)
}

func joinArtists(artists []Artist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
