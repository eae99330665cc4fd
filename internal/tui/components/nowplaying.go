package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/tui/styles"
)

// NowPlaying displays the currently playing track
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel. Progress is extrapolated to now so
// the bar moves between polls.
func (n *NowPlaying) Render(snap *core.PlaybackSnapshot, pending bool, now time.Time, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !snap.HasTrack() {
		content = styles.Muted.Render("No track playing")
	} else {
		content = n.renderTrack(snap, pending, now, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(snap *core.PlaybackSnapshot, pending bool, now time.Time, width int) string {
	track := snap.Track

	icon := styles.StatusIcon(snap.IsPlaying, pending)
	title := styles.Title.Width(width - 4).Render(track.Name)
	artist := styles.Subtitle.Render(track.ArtistNames())
	album := styles.Dim.Render(track.Album.Name)

	progressWidth := width - 14 // times on either side
	if progressWidth < 10 {
		progressWidth = 10
	}
	bar := styles.ProgressBar(snap.ProgressPercent(now), progressWidth)
	progress := fmt.Sprintf("%s %s %s", FormatDuration(snap.ProgressAt(now)), bar, FormatDuration(track.Duration()))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+album,
		"",
		progress,
		"",
		n.renderControls(snap.IsPlaying),
	)
}

func (n *NowPlaying) renderControls(playing bool) string {
	controls := styles.Dim.Render("⏮ ")
	if playing {
		controls += styles.Playing.Render("⏸")
	} else {
		controls += styles.Paused.Render("▶")
	}
	controls += styles.Dim.Render(" ⏭")

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(controls)
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
