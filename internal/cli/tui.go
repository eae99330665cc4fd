package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui"},
	Short:   "Launch interactive dashboard",
	Long: `Launch the interactive terminal dashboard.

The dashboard provides a live view with:
  • Now Playing - current track, artists, album and progress
  • Up Next - upcoming tracks in the queue
  • Search - find a track and add it to the queue

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  /            Search and queue
  Space        Play/Pause
  n            Next track
  p            Previous track (restarts after 10s)
  r            Restart track
  ←/→          Seek 10s
  Tab          Switch panel`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cmd.Context(), cfg, logger)
}
