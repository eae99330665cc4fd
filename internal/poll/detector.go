// Package poll keeps the published playback view fresh by polling.
package poll

import "github.com/tessro/riffbar/internal/core"

// Identity is the part of a playback snapshot that decides whether it is
// worth republishing. Progress is deliberately not part of it.
type Identity struct {
	TrackID   string
	IsPlaying bool
}

// IdentityOf returns the identity of s. An absent snapshot or one without
// a track has an empty track ID.
func IdentityOf(s *core.PlaybackSnapshot) Identity {
	return Identity{TrackID: s.TrackID(), IsPlaying: s.Playing()}
}

// Changed reports whether next differs from prev in track or play state.
func Changed(prev Identity, next *core.PlaybackSnapshot) bool {
	return IdentityOf(next) != prev
}
