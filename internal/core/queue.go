package core

// QueueItem is an upcoming track. It carries no ID, only the URI.
type QueueItem struct {
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	DurationMs int64    `json:"duration_ms"`
	Album      Album    `json:"album"`
}

// ArtistNames joins the artist names in credit order.
func (q QueueItem) ArtistNames() string {
	return joinArtists(q.Artists)
}

// QueueSnapshot represents the playback queue in playback order, next-up first.
type QueueSnapshot struct {
	CurrentlyPlaying *QueueItem  `json:"currently_playing,omitempty"`
	Queue            []QueueItem `json:"queue"`
}

// Upcoming returns at most n queued items; n <= 0 returns all of them.
func (q *QueueSnapshot) Upcoming(n int) []QueueItem {
	if q == nil {
		return nil
	}
	if n <= 0 || n >= len(q.Queue) {
		return q.Queue
	}
	return q.Queue[:n]
}

// Len returns the number of queued items.
func (q *QueueSnapshot) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Queue)
}

// IsEmpty returns true if nothing is queued.
func (q *QueueSnapshot) IsEmpty() bool {
	return q.Len() == 0
}
