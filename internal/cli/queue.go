package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/app"
	"github.com/tessro/riffbar/internal/core"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/search"
	"github.com/tessro/riffbar/internal/wizard"
)

var (
	queueLimit    int
	queueAddURI   string
	queueAddFirst bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the playback queue",
	Long:  `Show upcoming tracks, next-up first.`,
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add [query]",
	Short: "Add a track to the queue",
	Long: `Search for a track and add it to the queue.

A single result is queued directly. With several results you pick one;
without a terminal pass --first or narrow the query. Without a query an
interactive search opens.

Examples:
  riffbar queue add "bohemian rhapsody"
  riffbar queue add --uri spotify:track:4u7EnebtmKWzUH433cf5Qv
  riffbar queue add`,
	RunE: runQueueAdd,
}

func init() {
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Maximum number of tracks to show")
	queueAddCmd.Flags().StringVar(&queueAddURI, "uri", "", "Add a specific spotify:track: URI")
	queueAddCmd.Flags().BoolVar(&queueAddFirst, "first", false, "Queue the first result when several match")

	queueCmd.AddCommand(queueAddCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, e *app.Engine) error {
		queue := e.Store().Queue()
		items := queue.Upcoming(queueLimit)

		if JSONOutput() {
			out := make([]map[string]any, len(items))
			for i, t := range items {
				out[i] = map[string]any{
					"position": i + 1,
					"title":    t.Name,
					"artist":   t.ArtistNames(),
					"album":    t.Album.Name,
					"duration": FormatDuration(trackDuration(t.DurationMs)),
					"uri":      t.URI,
				}
			}
			return printJSON(map[string]any{"queue": out, "total": queue.Len()})
		}

		if queue.IsEmpty() {
			fmt.Println("Queue is empty")
			return nil
		}

		table := NewTable("#", "TITLE", "ARTIST", "DURATION")
		for i, t := range items {
			table.Row(
				strconv.Itoa(i+1),
				TruncateString(t.Name, 40),
				TruncateString(t.ArtistNames(), 30),
				FormatDuration(trackDuration(t.DurationMs)),
			)
		}
		table.Flush()

		if rest := queue.Len() - len(items); rest > 0 {
			fmt.Printf("...and %s more\n", humanize.Comma(int64(rest)))
		}
		return nil
	})
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	interactive := wizard.NewInteractive()
	query := strings.TrimSpace(strings.Join(args, " "))

	if wizard.NeedsQuery(args, queueAddURI) && !interactive.CanInteract() {
		return fmt.Errorf("a query or --uri is required")
	}

	changes := make(chan struct{}, 1)
	e, err := newEngine(app.WithSearchChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx := cmd.Context()
	if err := requireSession(ctx, e); err != nil {
		return err
	}

	coord := e.Search()
	switch {
	case queueAddURI != "":
		if !core.IsTrackURI(queueAddURI) {
			return fmt.Errorf("not a track URI: %s", queueAddURI)
		}
		coord.Input(queueAddURI)

	case query == "":
		picked, err := interactive.PromptSearch(coord, changes)
		if err != nil {
			return err
		}
		if picked == nil {
			return wizard.ErrCancelled
		}

	default:
		results, err := coord.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no tracks found for %q", query)
		}
		if len(results) > 1 {
			picked, err := interactive.PromptTrack(results)
			if err != nil {
				return err
			}
			if picked == nil && queueAddFirst {
				picked = &results[0]
			}
			if picked != nil {
				coord.Select(*picked)
			}
		}
	}

	target := coord.Snapshot()
	if err := e.Queue().Enqueue(ctx); err != nil {
		if errors.Is(err, rerrors.ErrNoTarget) {
			return rerrors.WithSuggestion(err, "Several tracks match; pass --first, --uri or a narrower query")
		}
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	uri, _ := search.ResolveTarget(target.Selection, target.Results)
	if JSONOutput() {
		return printJSON(map[string]string{"status": "queued", "uri": uri})
	}
	fmt.Printf("➕ Added to queue: %s\n", queuedLabel(target, uri))
	return nil
}

// queuedLabel names what was queued as the user would recognise it.
func queuedLabel(snap search.Snapshot, uri string) string {
	switch {
	case snap.Selection != "" && !core.IsTrackURI(snap.Query):
		return snap.Query
	case len(snap.Results) == 1:
		return snap.Results[0].Label()
	default:
		return uri
	}
}

func trackDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
