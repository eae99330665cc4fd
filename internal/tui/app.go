package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/tessro/riffbar/internal/app"
	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/config"
	"github.com/tessro/riffbar/internal/search"
	"github.com/tessro/riffbar/internal/state"
	"github.com/tessro/riffbar/internal/tui/components"
	"github.com/tessro/riffbar/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
)

const (
	seekStep     = 10 * time.Second
	redrawPeriod = time.Second
)

// Signal wakes the UI when state it cannot subscribe to changes.
type Signal chan struct{}

// NewSignal creates a signal.
func NewSignal() Signal {
	return make(Signal, 1)
}

// Notify wakes the UI. Bursts coalesce.
func (s Signal) Notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// Model is the main TUI model
type Model struct {
	engine  *app.Engine
	ctx     context.Context
	updates <-chan struct{}
	search  Signal
	now     func() time.Time

	width        int
	height       int
	focusedPanel Panel

	// State
	view    state.View
	authed  auth.State
	results search.Snapshot

	// Components
	nowPlaying *components.NowPlaying
	queueView  *components.Queue

	// Overlays
	showHelp     bool
	showSearch   bool
	searchInput  textinput.Model
	searchCursor int

	quitting bool
}

// NewModel creates a model over a started engine. updates comes from the
// engine's store; sig is the engine's search-change signal.
func NewModel(ctx context.Context, engine *app.Engine, updates <-chan struct{}, sig Signal, queueRows int) Model {
	ti := textinput.New()
	ti.Placeholder = "Search tracks or paste a spotify:track: URI"
	ti.CharLimit = 200
	ti.Width = 50

	return Model{
		engine:       engine,
		ctx:          ctx,
		updates:      updates,
		search:       sig,
		now:          time.Now,
		focusedPanel: PanelNowPlaying,
		view:         engine.Store().View(),
		authed:       engine.Guard().State(),
		nowPlaying:   components.NewNowPlaying(),
		queueView:    components.NewQueue(queueRows),
		searchInput:  ti,
	}
}

// Messages
type tickMsg time.Time
type storeMsg struct{}
type searchMsg struct{}
type actionDoneMsg struct{ err error }

func (m Model) tick() tea.Cmd {
	return tea.Tick(redrawPeriod, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForStore() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return storeMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) waitForSearch() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.search:
			return searchMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run executes a command against the engine off the UI goroutine. Outcome
// feedback arrives through the store.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn(m.ctx)}
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForStore(), m.waitForSearch())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		// Progress is extrapolated at render time; expired messages drop here.
		m.refresh()
		return m, m.tick()

	case storeMsg:
		m.refresh()
		return m, m.waitForStore()

	case searchMsg:
		m.results = m.engine.Search().Snapshot()
		if m.results.Query != m.searchInput.Value() {
			m.searchInput.SetValue(m.results.Query)
			m.searchInput.CursorEnd()
		}
		if m.searchCursor >= len(m.results.Results) {
			m.searchCursor = 0
		}
		return m, m.waitForSearch()

	case actionDoneMsg:
		m.refresh()
		return m, nil
	}

	if m.showSearch {
		var inputCmd tea.Cmd
		m.searchInput, inputCmd = m.searchInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

func (m *Model) refresh() {
	m.view = m.engine.Store().View()
	m.authed = m.engine.Guard().State()
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.showSearch {
		return m.handleSearchKeyPress(msg)
	}

	ctl := m.engine.Control()

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/", "a":
		m.showSearch = true
		m.searchCursor = 0
		m.searchInput.Focus()
		return m, textinput.Blink

	case "tab", "shift+tab":
		m.focusedPanel = (m.focusedPanel + 1) % 2
		return m, nil

	case " ":
		return m, m.run(ctl.Toggle)
	case "n":
		return m, m.run(ctl.Next)
	case "p":
		return m, m.run(ctl.Previous)
	case "r":
		return m, m.run(ctl.Restart)
	case "left", "h":
		pos := m.view.Playback.ProgressAt(m.now()) - seekStep
		if pos < 0 {
			pos = 0
		}
		return m, m.run(func(ctx context.Context) error { return ctl.Seek(ctx, pos) })
	case "right", "l":
		pos := m.view.Playback.ProgressAt(m.now()) + seekStep
		return m, m.run(func(ctx context.Context) error { return ctl.Seek(ctx, pos) })
	}

	if m.focusedPanel == PanelQueue {
		switch msg.String() {
		case "j", "down":
			m.queueView.ScrollDown()
		case "k", "up":
			m.queueView.ScrollUp()
		}
	}

	return m, nil
}

func (m Model) handleSearchKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	coord := m.engine.Search()

	switch msg.String() {
	case "esc":
		m.showSearch = false
		m.searchInput.Blur()
		return m, nil

	case "enter":
		// With results on screen, enter picks one; otherwise it queues.
		if m.results.ShowResults && m.searchCursor < len(m.results.Results) {
			coord.Select(m.results.Results[m.searchCursor])
			m.searchCursor = 0
			return m, nil
		}
		return m, m.run(m.engine.Queue().Enqueue)

	case "ctrl+q":
		return m, m.run(m.engine.Queue().Enqueue)

	case "up", "ctrl+p":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.searchCursor < len(m.results.Results)-1 {
			m.searchCursor++
		}
		return m, nil
	}

	before := m.searchInput.Value()
	var inputCmd tea.Cmd
	m.searchInput, inputCmd = m.searchInput.Update(msg)
	if v := m.searchInput.Value(); v != before {
		coord.Input(v)
	}
	return m, inputCmd
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}
	if m.showSearch {
		return m.renderSearch()
	}

	topHeight := m.height * 45 / 100
	bottomHeight := m.height - topHeight - 3
	width := m.width - 2

	nowPlaying := m.nowPlaying.Render(m.view.Playback, m.view.Pending, m.now(), width, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(m.view.Queue, width, bottomHeight-2, m.focusedPanel == PanelQueue)

	return lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:search  space:play/pause  n:next  p:prev  ←/→:seek")

	switch msg := m.view.Message; {
	case !msg.Empty():
		status = messageStyle(msg.Level).Render(msg.Text)
	case m.authed == auth.Unauthenticated:
		status = styles.ErrorText.Render("Not logged in - run `riffbar auth login`")
	case m.authed == auth.Refreshing:
		status = styles.InfoText.Render("Refreshing session...")
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func messageStyle(level state.Level) lipgloss.Style {
	switch level {
	case state.LevelSuccess:
		return styles.SuccessText
	case state.LevelError:
		return styles.ErrorText
	default:
		return styles.InfoText
	}
}

func (m Model) renderHelp() string {
	title := "riffbar - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /, a         Search and queue
  Tab          Switch panel

  Playback
  ────────
  Space        Play/Pause
  n            Next track
  p            Previous (restarts after 10s)
  r            Restart track
  ←/h  →/l     Seek 10s

  Queue Panel
  ───────────
  j/↓          Scroll down
  k/↑          Scroll up

  Search
  ──────
  Enter        Pick result, then queue it
  Ctrl+q       Queue selection now
  Esc          Close

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(styles.Highlight.Render("Add to queue"))
	b.WriteString("\n\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	snap := m.results
	switch {
	case snap.Searching:
		b.WriteString(styles.Muted.Render("Searching..."))
		b.WriteString("\n")
	case snap.Selection != "" && !snap.ShowResults:
		b.WriteString(styles.SuccessText.Render("Selected: " + snap.Selection))
		b.WriteString("\n")
	case snap.ShowResults && len(snap.Results) == 0:
		b.WriteString(styles.Muted.Render("No results found"))
		b.WriteString("\n")
	case snap.ShowResults:
		for i, t := range snap.Results {
			line := t.Name + " " + styles.Muted.Render(t.ArtistNames())
			if i == m.searchCursor {
				b.WriteString(styles.Cursor.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if msg := m.view.Message; !msg.Empty() {
		b.WriteString("\n")
		b.WriteString(messageStyle(msg.Level).Render(msg.Text))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Dim.Render("↑/↓:nav  Enter:pick/queue  Ctrl+q:queue  Esc:close"))

	content := lipgloss.NewStyle().
		Width(60).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run starts an engine from cfg and drives the dashboard until the user
// quits.
func Run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	styles.ApplyTheme(cfg.TUI.Theme)

	sig := NewSignal()
	engine, err := app.FromConfig(cfg, logger, app.WithSearchChange(sig.Notify))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer engine.Stop()

	if _, err := engine.Start(ctx); err != nil {
		logger.Warn("initial session check failed", "err", err)
	}

	updates, unsubscribe := engine.Store().Subscribe()
	defer unsubscribe()

	model := NewModel(ctx, engine, updates, sig, cfg.TUI.QueueRows)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
