package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tessro/riffbar/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
	err           error
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is
// reported by NewFormatter.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl == "" {
			return
		}
		f.template = template.New("format")
		if _, err := f.template.Parse(tmpl); err != nil {
			f.template = nil
			f.err = err
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) (*Formatter, error) {
	f := &Formatter{
		showEmoji: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.err != nil {
		return nil, fmt.Errorf("invalid format template: %w", f.err)
	}
	return f, nil
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
		Message:   e.Message.Text,
		Queued:    e.Queue.Len(),
	}

	if t := trackOf(e.Current); t != nil {
		data.Title = t.Name
		data.Artist = t.ArtistNames()
		data.Album = t.Album.Name
		data.URI = t.URI
	}
	if e.Current != nil {
		data.Playing = e.Current.IsPlaying
		data.Progress = formatDuration(e.Current.ProgressAt(e.Timestamp))
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Title     string
	Artist    string
	Album     string
	URI       string
	Playing   bool
	Progress  string
	Message   string
	Queued    int
}

func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if t := trackOf(e.Current); t != nil {
			return "Now playing: " + t.Label()
		}
		return "Track changed"

	case EventTrackComplete:
		if t := trackOf(e.Previous); t != nil {
			return "Finished: " + t.Label()
		}
		return "Track completed"

	case EventTrackSkip:
		if t := trackOf(e.Previous); t != nil {
			return "Skipped: " + t.Label()
		}
		return "Track skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventQueueChange:
		n := e.Queue.Len()
		if n == 0 {
			return "Queue is empty"
		}
		next := e.Queue.Upcoming(1)
		return fmt.Sprintf("Queue: %s %s, next up %s - %s",
			humanize.Comma(int64(n)), plural(n, "track", "tracks"),
			next[0].ArtistNames(), next[0].Name)

	case EventMessage, EventSessionExpired:
		return e.Message.Text

	default:
		return "Unknown event"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventQueueChange:
		return "📜"
	case EventMessage:
		return "💬"
	case EventSessionExpired:
		return "🔒"
	default:
		return "❓"
	}
}

func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventTrackSkip:
		return "track_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventQueueChange:
		return "queue_change"
	case EventMessage:
		return "message"
	case EventSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

func trackOf(s *core.PlaybackSnapshot) *core.Track {
	if !s.HasTrack() {
		return nil
	}
	return s.Track
}
