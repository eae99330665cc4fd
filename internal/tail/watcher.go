package tail

import (
	"context"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/state"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventQueueChange
	EventMessage
	EventSessionExpired
)

// Event represents a published state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.PlaybackSnapshot
	Current   *core.PlaybackSnapshot
	Queue     *core.QueueSnapshot
	Message   state.Message
}

// Watcher turns store updates into events.
type Watcher struct {
	store  *state.Store
	events chan Event
	now    func() time.Time

	last      *core.PlaybackSnapshot
	queueHash uint64
	message   string
}

// NewWatcher creates a watcher over store.
func NewWatcher(store *state.Store) *Watcher {
	return &Watcher{
		store:  store,
		events: make(chan Event, 16),
		now:    time.Now,
	}
}

// Events returns the channel of events. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run follows the store until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	updates, unsubscribe := w.store.Subscribe()
	defer unsubscribe()
	defer close(w.events)

	w.emit(w.Diff(w.store.View()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updates:
			w.emit(w.Diff(w.store.View()))
		}
	}
}

func (w *Watcher) emit(events []Event) {
	for _, e := range events {
		select {
		case w.events <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// Diff compares view with the last one seen and returns the events between
// them. It is not safe for concurrent use.
func (w *Watcher) Diff(view state.View) []Event {
	now := w.now()
	var events []Event

	if view.Message.Text != w.message {
		w.message = view.Message.Text
		switch view.Message.Text {
		case "":
		case state.SessionExpiredText:
			events = append(events, Event{Type: EventSessionExpired, Timestamp: now, Message: view.Message})
		default:
			events = append(events, Event{Type: EventMessage, Timestamp: now, Message: view.Message})
		}
	}

	events = append(events, diffPlayback(w.last, view.Playback, now)...)
	w.last = view.Playback

	if h := queueHash(view.Queue); h != w.queueHash {
		if view.Queue != nil {
			events = append(events, Event{Type: EventQueueChange, Timestamp: now, Queue: view.Queue})
		}
		w.queueHash = h
	}

	return events
}

// diffPlayback compares two snapshots and returns detected events.
func diffPlayback(prev, curr *core.PlaybackSnapshot, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	var events []Event

	// First snapshot - no previous state
	if prev == nil {
		if curr.HasTrack() {
			events = append(events, Event{
				Type:      EventTrackChange,
				Timestamp: now,
				Current:   curr,
			})
		}
		return events
	}

	if prev.TrackID() != curr.TrackID() {
		eventType := EventTrackChange
		if prev.HasTrack() {
			eventType = EventTrackSkip
			if wasCompleted(prev, now) {
				eventType = EventTrackComplete
			}
		}
		events = append(events, Event{
			Type:      eventType,
			Timestamp: now,
			Previous:  prev,
			Current:   curr,
		})
		// A skip or completion also announces the new track.
		if eventType != EventTrackChange && curr.HasTrack() {
			events = append(events, Event{
				Type:      EventTrackChange,
				Timestamp: now,
				Previous:  prev,
				Current:   curr,
			})
		}
	}

	if prev.IsPlaying && !curr.IsPlaying {
		events = append(events, Event{Type: EventPause, Timestamp: now, Previous: prev, Current: curr})
	} else if !prev.IsPlaying && curr.IsPlaying {
		events = append(events, Event{Type: EventResume, Timestamp: now, Previous: prev, Current: curr})
	}

	return events
}

// wasCompleted reports whether prev had reached 95% of its duration by now.
// The store only publishes on change, so prev's progress is extrapolated.
func wasCompleted(prev *core.PlaybackSnapshot, now time.Time) bool {
	d := prev.Track.Duration()
	if d == 0 {
		return false
	}
	return float64(prev.ProgressAt(now)) >= float64(d)*0.95
}

// queueHash identifies the queue by its ordered URIs. An absent queue
// hashes to 0.
func queueHash(q *core.QueueSnapshot) uint64 {
	if q == nil {
		return 0
	}
	uris := make([]string, 0, len(q.Queue)+1)
	if q.CurrentlyPlaying != nil {
		uris = append(uris, q.CurrentlyPlaying.URI)
	}
	for _, item := range q.Queue {
		uris = append(uris, item.URI)
	}
	h, err := hashstructure.Hash(uris, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	// Keep 0 reserved for absent.
	if h == 0 {
		h = 1
	}
	return h
}
