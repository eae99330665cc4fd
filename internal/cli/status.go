package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	Long:  `Shows the track playing in the remote session, its progress and what is queued next.`,
	RunE:  runStatus,
}

var statusQueueRows int

func init() {
	statusCmd.Flags().IntVarP(&statusQueueRows, "next", "n", 3, "Number of queued tracks to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	result, err := syncSession(cmd.Context(), e)
	if err != nil {
		return err
	}
	if err := statusFailure(result); err != nil {
		return err
	}

	view := result.Data
	now := time.Now()

	if JSONOutput() {
		out := statusJSON(view.Playback, view.Queue, now)
		if result.HasErrors() {
			out["errors"] = errorStrings(result.Errors)
		}
		return printJSON(out)
	}

	if result.HasErrors() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", strings.TrimRight(result.ErrorSummary(), "\n"))
	}
	if !view.Playback.HasTrack() {
		fmt.Println("No active playback")
		return nil
	}
	printStatus(view.Playback, view.Queue, now)
	return nil
}

// statusFailure fails only when no fetch produced anything to show.
func statusFailure(result *rerrors.PartialResult[state.View]) error {
	if !result.HasErrors() || result.Data.Playback != nil || result.Data.Queue != nil {
		return nil
	}
	return errors.Join(result.Errors...)
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func statusJSON(snap *core.PlaybackSnapshot, queue *core.QueueSnapshot, now time.Time) map[string]any {
	out := map[string]any{
		"is_playing":  snap.Playing(),
		"queue_count": queue.Len(),
	}
	if !snap.HasTrack() {
		out["message"] = "No active playback"
		return out
	}

	t := snap.Track
	out["track"] = map[string]any{
		"id":       t.ID,
		"uri":      t.URI,
		"title":    t.Name,
		"artist":   t.ArtistNames(),
		"album":    t.Album.Name,
		"duration": t.Duration().String(),
		"art_url":  t.Album.ArtURL(),
	}
	out["progress"] = snap.ProgressAt(now).Round(time.Second).String()
	out["progress_percent"] = snap.ProgressPercent(now)

	next := make([]map[string]string, 0, statusQueueRows)
	for _, item := range queue.Upcoming(statusQueueRows) {
		next = append(next, map[string]string{
			"uri":    item.URI,
			"title":  item.Name,
			"artist": item.ArtistNames(),
		})
	}
	out["next"] = next
	return out
}

func printStatus(snap *core.PlaybackSnapshot, queue *core.QueueSnapshot, now time.Time) {
	playIcon := "▶"
	if !snap.Playing() {
		playIcon = "⏸"
	}

	t := snap.Track
	fmt.Printf("%s %s\n", playIcon, t.Name)
	if t.Album.Name != "" {
		fmt.Printf("  %s — %s\n", t.ArtistNames(), t.Album.Name)
	} else {
		fmt.Printf("  %s\n", t.ArtistNames())
	}
	fmt.Printf("  %s %s / %s\n",
		FormatProgress(snap.ProgressPercent(now), 30),
		FormatDuration(snap.ProgressAt(now)),
		FormatDuration(t.Duration()))

	upcoming := queue.Upcoming(statusQueueRows)
	if len(upcoming) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Up next:")
	for i, item := range upcoming {
		fmt.Printf("  %d. %s — %s\n", i+1, item.Name, item.ArtistNames())
	}
	if rest := queue.Len() - len(upcoming); rest > 0 {
		fmt.Printf("  ...and %d more\n", rest)
	}
}
