package core

import "time"

// PlaybackSnapshot is a full view of remote playback at one point in time.
// A nil *PlaybackSnapshot means nothing is known to be playing.
type PlaybackSnapshot struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMs int64  `json:"progress_ms"`
	Track      *Track `json:"item,omitempty"`

	// FetchedAt is when the snapshot was read from the backend.
	FetchedAt time.Time `json:"-"`
}

// HasTrack returns true if there is an active track.
func (s *PlaybackSnapshot) HasTrack() bool {
	return s != nil && s.Track != nil
}

// TrackID returns the current track ID, or "" when no track is present.
func (s *PlaybackSnapshot) TrackID() string {
	if !s.HasTrack() {
		return ""
	}
	return s.Track.ID
}

// Playing reports the play flag; an absent snapshot is not playing.
func (s *PlaybackSnapshot) Playing() bool {
	return s != nil && s.IsPlaying
}

// Clone returns a shallow copy; the track is shared since snapshots are
// replaced wholesale and never mutated in place.
func (s *PlaybackSnapshot) Clone() *PlaybackSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// ProgressAt extrapolates the playback position to now. While playing, the
// position advances from FetchedAt. The result never exceeds the track
// duration even if the backend reported a progress past the end.
func (s *PlaybackSnapshot) ProgressAt(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	progress := time.Duration(s.ProgressMs) * time.Millisecond
	if s.IsPlaying && !s.FetchedAt.IsZero() && now.After(s.FetchedAt) {
		progress += now.Sub(s.FetchedAt)
	}
	if s.HasTrack() && s.Track.DurationMs > 0 {
		if d := s.Track.Duration(); progress > d {
			progress = d
		}
	}
	if progress < 0 {
		progress = 0
	}
	return progress
}

// ProgressPercent returns playback progress at now as a percentage (0-100).
func (s *PlaybackSnapshot) ProgressPercent(now time.Time) float64 {
	if !s.HasTrack() || s.Track.DurationMs <= 0 {
		return 0
	}
	return float64(s.ProgressAt(now)) / float64(s.Track.Duration()) * 100
}
