// Package state holds the playback view shown to the user.
package state

import (
	"sync"
	"time"

	"github.com/tessro/riffbar/internal/core"
)

// SessionExpiredText is shown when the session cannot be renewed.
const SessionExpiredText = "Session expired, please log in again"

// Level is the severity of a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Message is a status line. A zero Expires never expires.
type Message struct {
	Text    string
	Level   Level
	Expires time.Time
}

// Empty reports whether there is nothing to show.
func (m Message) Empty() bool {
	return m.Text == ""
}

func (m Message) expired(now time.Time) bool {
	return !m.Expires.IsZero() && !now.Before(m.Expires)
}

// overlay is the optimistic play/pause value laid over the confirmed
// snapshot. A settled overlay belongs to a command that has succeeded and
// gives way to the next authoritative read; an unsettled one survives it.
// prev is the overlay that was visible when this one was applied, restored
// if this command fails.
type overlay struct {
	active  bool
	value   bool
	gen     uint64
	settled bool
	prev    *overlay
}

// dropSettledAncestors cuts prev at the first settled overlay. An
// authoritative read supersedes it, so a rollback must fall through to the
// snapshot instead.
func (o *overlay) dropSettledAncestors() {
	for cur := o; cur.prev != nil; cur = cur.prev {
		if cur.prev.settled {
			cur.prev = nil
			return
		}
	}
}

// View is a consistent copy of everything the store publishes.
type View struct {
	Playback *core.PlaybackSnapshot
	Queue    *core.QueueSnapshot
	Message  Message
	Pending  bool
}

// Store is the single published view. Snapshots are replaced wholesale;
// the play flag is the one field that can be overridden in place.
type Store struct {
	mu       sync.Mutex
	playback *core.PlaybackSnapshot
	queue    *core.QueueSnapshot
	overlay  overlay
	gen      uint64
	message  Message
	subs     map[int]chan struct{}
	nextSub  int
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		subs: make(map[int]chan struct{}),
		now:  time.Now,
	}
}

// SetClock overrides the time source used for message expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Playback returns the visible playback snapshot.
func (s *Store) Playback() *core.PlaybackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

func (s *Store) visibleLocked() *core.PlaybackSnapshot {
	if s.playback == nil {
		return nil
	}
	v := s.playback.Clone()
	if s.overlay.active {
		v.IsPlaying = s.overlay.value
	}
	return v
}

// IsPlaying returns the visible play flag.
func (s *Store) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay.active {
		return s.overlay.value
	}
	return s.playback.Playing()
}

// Queue returns the published queue snapshot.
func (s *Store) Queue() *core.QueueSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

// View returns everything at once.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Playback: s.visibleLocked(),
		Queue:    s.queue,
		Message:  s.messageLocked(),
		Pending:  s.overlay.active && !s.overlay.settled,
	}
}

// UpdatePlayback stores an authoritative snapshot. changed is evaluated
// under the lock against the visible identity before the update; only when
// it reports true are subscribers notified. The snapshot is stored either
// way so progress stays current.
func (s *Store) UpdatePlayback(next *core.PlaybackSnapshot, changed func(trackID string, playing bool) bool) bool {
	s.mu.Lock()
	prev := s.visibleLocked()
	visiblePlaying := prev.Playing()
	if prev == nil && s.overlay.active {
		visiblePlaying = s.overlay.value
	}
	fire := changed == nil || changed(prev.TrackID(), visiblePlaying)

	s.playback = next
	switch {
	case s.overlay.active && s.overlay.settled:
		s.overlay = overlay{}
	case s.overlay.active:
		s.overlay.dropSettledAncestors()
	}
	s.mu.Unlock()

	if fire {
		s.notify()
	}
	return fire
}

// ReplaceQueue stores an authoritative queue and notifies.
func (s *Store) ReplaceQueue(q *core.QueueSnapshot) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
	s.notify()
}

// ApplyOptimistic overrides the visible play flag and returns the
// generation that owns the override. The overlay visible beforehand is kept
// so a failed command can put it back.
func (s *Store) ApplyOptimistic(playing bool) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	next := overlay{active: true, value: playing, gen: gen}
	if s.overlay.active {
		before := s.overlay
		if before.settled {
			before.prev = nil
		}
		next.prev = &before
	}
	s.overlay = next
	s.mu.Unlock()

	s.notify()
	return gen
}

// Settle marks gen's override as confirmed by a successful command, even
// when a newer override is stacked on top of it.
func (s *Store) Settle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.overlay.active {
		return
	}
	for o := &s.overlay; o != nil; o = o.prev {
		if o.gen == gen {
			o.settled = true
			o.prev = nil
			return
		}
	}
}

// Rollback restores what was visible before gen's override: the overlay it
// replaced, or the confirmed snapshot when there was none. When a newer
// command has since taken over, the failed override is only removed from
// under it and Rollback reports false, so the last issued command decides
// what is shown.
func (s *Store) Rollback(gen uint64) bool {
	s.mu.Lock()
	if !s.overlay.active {
		s.mu.Unlock()
		return false
	}
	if s.overlay.gen != gen {
		for cur := &s.overlay; cur.prev != nil; cur = cur.prev {
			if cur.prev.gen == gen {
				cur.prev = cur.prev.prev
				break
			}
		}
		s.mu.Unlock()
		return false
	}
	if s.overlay.prev != nil {
		s.overlay = *s.overlay.prev
	} else {
		s.overlay = overlay{}
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Expire clears both snapshots and shows the session-expired message,
// which stays until replaced.
func (s *Store) Expire() {
	s.mu.Lock()
	s.playback = nil
	s.queue = nil
	s.overlay = overlay{}
	s.message = Message{Text: SessionExpiredText, Level: LevelError}
	s.mu.Unlock()

	s.notify()
}

// Reset clears the snapshots and the message.
func (s *Store) Reset() {
	s.mu.Lock()
	s.playback = nil
	s.queue = nil
	s.overlay = overlay{}
	s.message = Message{}
	s.mu.Unlock()

	s.notify()
}

// SetMessage shows text for ttl; ttl <= 0 keeps it until replaced.
func (s *Store) SetMessage(text string, level Level, ttl time.Duration) {
	s.mu.Lock()
	m := Message{Text: text, Level: level}
	if ttl > 0 {
		m.Expires = s.now().Add(ttl)
	}
	s.message = m
	s.mu.Unlock()

	s.notify()
}

// ClearMessage removes the current message.
func (s *Store) ClearMessage() {
	s.mu.Lock()
	s.message = Message{}
	s.mu.Unlock()
	s.notify()
}

// Message returns the current message, or the zero Message once expired.
func (s *Store) Message() Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageLocked()
}

func (s *Store) messageLocked() Message {
	if s.message.expired(s.now()) {
		s.message = Message{}
	}
	return s.message
}

// Subscribe returns a channel that receives a value after each published
// change. Bursts coalesce into one pending notification. Call the returned
// func to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
