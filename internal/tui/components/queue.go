package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/tui/styles"
)

// Queue displays the upcoming tracks in playback order
type Queue struct {
	offset int
	rows   int
}

// NewQueue creates a queue panel showing at most rows items at a time.
// rows <= 0 fits the panel height.
func NewQueue(rows int) *Queue {
	return &Queue{rows: rows}
}

// ScrollDown scrolls the queue down
func (q *Queue) ScrollDown() {
	q.offset++
}

// ScrollUp scrolls the queue up
func (q *Queue) ScrollUp() {
	if q.offset > 0 {
		q.offset--
	}
}

// Offset returns the index of the first visible item.
func (q *Queue) Offset() int {
	return q.offset
}

// Render renders the queue panel
func (q *Queue) Render(queue *core.QueueSnapshot, width, height int, focused bool) string {
	title := styles.PanelTitle("Up Next", focused)

	var content string
	if queue.IsEmpty() {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(queue, width-4, height-4)
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

func (q *Queue) renderQueue(queue *core.QueueSnapshot, width, maxLines int) string {
	items := queue.Queue

	if q.offset >= len(items) {
		q.offset = len(items) - 1
	}
	if q.offset < 0 {
		q.offset = 0
	}

	visible := maxLines - 1 // room for the "more" line
	if q.rows > 0 && q.rows < visible {
		visible = q.rows
	}
	if visible < 1 {
		visible = 1
	}

	start := q.offset
	end := start + visible
	if end > len(items) {
		end = len(items)
	}

	lines := make([]string, 0, end-start+1)

	// "XX. " (4) + "   " (3) + " — " (3)
	const overhead = 10

	for i := start; i < end; i++ {
		item := items[i]
		title, artist := fit(item.Name, item.ArtistNames(), width-overhead)
		num := fmt.Sprintf("%2d.", i+1)

		var line string
		if i == 0 {
			line = styles.Highlight.Render(fmt.Sprintf("%s » %s — %s", num, title, artist))
		} else {
			line = fmt.Sprintf("%s   %s — %s",
				styles.Dim.Render(num),
				title,
				styles.Muted.Render(artist))
		}
		lines = append(lines, line)
	}

	if end < len(items) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(items)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fit truncates title and artist to share available columns, giving the
// artist at least a third.
func fit(title, artist string, available int) (string, string) {
	if len(title)+len(artist) <= available {
		return title, artist
	}

	minArtist := available / 3
	if minArtist < 10 {
		minArtist = 10
	}
	if minArtist > available-10 {
		minArtist = available - 10
	}

	artistSpace := minArtist
	if len(artist) < artistSpace {
		artistSpace = len(artist)
	}
	return truncate(title, available-artistSpace), truncate(artist, artistSpace)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
