package wizard

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/search"
)

type fakeCoordinator struct {
	inputs   []string
	selected []string
	snap     search.Snapshot
}

func (f *fakeCoordinator) Input(text string)         { f.inputs = append(f.inputs, text) }
func (f *fakeCoordinator) Select(track core.Track)   { f.selected = append(f.selected, track.URI) }
func (f *fakeCoordinator) Snapshot() search.Snapshot { return f.snap }

var tracks = []core.Track{
	{URI: "spotify:track:a", Name: "Alpha", DurationMs: 125_000, Artists: []core.Artist{{Name: "One"}}},
	{URI: "spotify:track:b", Name: "Beta", Artists: []core.Artist{{Name: "Two"}}},
}

func TestTrackOptions(t *testing.T) {
	opts := TrackOptions(tracks)
	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2", len(opts))
	}
	if opts[0].Key != "One - Alpha (2:05)" {
		t.Errorf("opts[0].Key = %q", opts[0].Key)
	}
	if opts[1].Key != "Two - Beta" || opts[1].Value != 1 {
		t.Errorf("opts[1] = %q/%d", opts[1].Key, opts[1].Value)
	}
}

func TestNeedsQuery(t *testing.T) {
	tests := []struct {
		args []string
		uri  string
		want bool
	}{
		{nil, "", true},
		{[]string{"song"}, "", false},
		{nil, "spotify:track:a", false},
	}
	for _, tt := range tests {
		if got := NeedsQuery(tt.args, tt.uri); got != tt.want {
			t.Errorf("NeedsQuery(%v, %q) = %v, want %v", tt.args, tt.uri, got, tt.want)
		}
	}
}

func TestPromptTrackWithoutTerminal(t *testing.T) {
	i := NewInteractive()
	i.SetEnabled(false)

	got, err := i.PromptTrack(tracks)
	if err != nil || got != nil {
		t.Errorf("PromptTrack(ambiguous) = %v, %v; want no choice", got, err)
	}

	got, err = i.PromptTrack(tracks[1:])
	if err != nil {
		t.Fatalf("PromptTrack() error = %v", err)
	}
	if got == nil || got.URI != "spotify:track:b" {
		t.Errorf("PromptTrack() = %v, want the lone result", got)
	}

	got, err = i.PromptTrack(nil)
	if err != nil || got != nil {
		t.Errorf("PromptTrack(nil) = %v, %v", got, err)
	}
}

func TestSearchModelForwardsInputAndSelects(t *testing.T) {
	coord := &fakeCoordinator{}
	changes := make(chan struct{}, 1)
	var m tea.Model = NewSearchModel(coord, changes)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	if len(coord.inputs) != 1 || coord.inputs[0] != "b" {
		t.Fatalf("inputs = %v", coord.inputs)
	}

	coord.snap = search.Snapshot{Query: "b", Results: tracks, ShowResults: true}
	m, _ = m.Update(changedMsg{})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit after selection")
	}

	sel := m.(SearchModel).Selected()
	if sel == nil || sel.URI != "spotify:track:b" {
		t.Errorf("Selected() = %v", sel)
	}
	if len(coord.selected) != 1 || coord.selected[0] != "spotify:track:b" {
		t.Errorf("coordinator selections = %v", coord.selected)
	}
}

func TestSearchModelEnterWithoutResults(t *testing.T) {
	coord := &fakeCoordinator{}
	var m tea.Model = NewSearchModel(coord, make(chan struct{}))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(SearchModel).Selected() != nil {
		t.Error("nothing should be selected")
	}
}
