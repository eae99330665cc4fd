package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/riffbar/internal/core"
	"github.com/tessro/riffbar/internal/search"
)

// Coordinator is the part of the search coordinator the wizard drives.
type Coordinator interface {
	Input(text string)
	Select(track core.Track)
	Snapshot() search.Snapshot
}

// SearchModel is the bubbletea model for the search wizard. Debouncing and
// stale-response handling live in the coordinator; the model only mirrors
// its snapshot.
type SearchModel struct {
	input    textinput.Model
	coord    Coordinator
	changes  <-chan struct{}
	snap     search.Snapshot
	cursor   int
	selected *core.Track
	width    int
	height   int
}

// Styles
var (
	searchTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	searchResultStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	searchSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))

	searchSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

// NewSearchModel creates a search wizard over coord. changes must receive
// a value whenever the coordinator's snapshot changes.
func NewSearchModel(coord Coordinator, changes <-chan struct{}) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "Search for tracks..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return SearchModel{
		input:   ti,
		coord:   coord,
		changes: changes,
		width:   80,
		height:  20,
	}
}

type changedMsg struct{}

func (m SearchModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Init initializes the model.
func (m SearchModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// Update handles messages.
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if m.snap.ShowResults && m.cursor < len(m.snap.Results) {
				t := m.snap.Results[m.cursor]
				m.coord.Select(t)
				m.selected = &t
				return m, tea.Quit
			}
			return m, nil

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.snap.Results)-1 {
				m.cursor++
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case changedMsg:
		m.snap = m.coord.Snapshot()
		if m.cursor >= len(m.snap.Results) {
			m.cursor = 0
		}
		return m, m.waitForChange()
	}

	before := m.input.Value()
	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.coord.Input(v)
	}
	return m, inputCmd
}

// View renders the model.
func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(searchTitleStyle.Render("Search"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.snap.Searching:
		b.WriteString("Searching...")
	case m.snap.ShowResults && len(m.snap.Results) == 0:
		b.WriteString("No results found")
	default:
		maxResults := m.height - 8
		if maxResults < 5 {
			maxResults = 5
		}
		for i, t := range m.snap.Results {
			if i >= maxResults {
				b.WriteString(searchSubtitleStyle.Render("  ...and more"))
				break
			}

			line := t.Name
			if artists := t.ArtistNames(); artists != "" {
				line += " " + searchSubtitleStyle.Render(artists)
			}

			if i == m.cursor {
				b.WriteString(searchSelectedStyle.Render("▸ " + line))
			} else {
				b.WriteString(searchResultStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(searchSubtitleStyle.Render("↑/↓ navigate • enter select • esc quit"))

	return b.String()
}

// Selected returns the chosen track, or nil if none.
func (m SearchModel) Selected() *core.Track {
	return m.selected
}

// RunSearch runs the search wizard and returns the chosen track.
func RunSearch(coord Coordinator, changes <-chan struct{}) (*core.Track, error) {
	model := NewSearchModel(coord, changes)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(SearchModel).Selected(), nil
}
