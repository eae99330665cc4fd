// Package wizard holds the interactive prompts used by CLI commands when
// an argument is missing or ambiguous.
package wizard

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/tessro/riffbar/internal/core"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("selection cancelled")

// Interactive gates prompts on a terminal being attached.
type Interactive struct {
	enabled bool
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptSearch launches the search wizard over coord if interactive mode is
// available. Returns nil if cancelled or not interactive.
func (i *Interactive) PromptSearch(coord Coordinator, changes <-chan struct{}) (*core.Track, error) {
	if !i.CanInteract() {
		return nil, nil
	}
	return RunSearch(coord, changes)
}

// PromptTrack asks the user to choose among results. A single result is
// returned without prompting. Without a terminal there is no choice and
// nil is returned.
func (i *Interactive) PromptTrack(results []core.Track) (*core.Track, error) {
	switch {
	case len(results) == 0:
		return nil, nil
	case len(results) == 1:
		return &results[0], nil
	case !i.CanInteract():
		return nil, nil
	}
	return PickTrack(results)
}

// PickTrack shows a select list of results.
func PickTrack(results []core.Track) (*core.Track, error) {
	options := TrackOptions(results)

	var picked int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Select a track to queue").
				Options(options...).
				Value(&picked),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return &results[picked], nil
}

// TrackOptions builds picker options keyed by result index.
func TrackOptions(results []core.Track) []huh.Option[int] {
	options := make([]huh.Option[int], 0, len(results))
	for i := range results {
		label := results[i].Label()
		if d := results[i].Duration(); d > 0 {
			label = fmt.Sprintf("%s (%d:%02d)", label, int(d.Minutes()), int(d.Seconds())%60)
		}
		options = append(options, huh.NewOption(label, i))
	}
	return options
}

// NeedsQuery returns true if a search argument is required but missing.
func NeedsQuery(args []string, uri string) bool {
	return len(args) == 0 && uri == ""
}
