package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/app"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search for tracks",
	Long: `Search the catalog for tracks. Use the URI with 'riffbar queue add --uri'.

Examples:
  riffbar search "heroes bowie"
  riffbar search --json daft punk`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withSession(cmd.Context(), func(ctx context.Context, e *app.Engine) error {
		results, err := e.Search().Search(ctx, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if JSONOutput() {
			out := make([]map[string]any, len(results))
			for i, t := range results {
				out[i] = map[string]any{
					"id":       t.ID,
					"uri":      t.URI,
					"title":    t.Name,
					"artist":   t.ArtistNames(),
					"album":    t.Album.Name,
					"duration": FormatDuration(t.Duration()),
				}
			}
			return printJSON(out)
		}

		if len(results) == 0 {
			fmt.Printf("No tracks found for %q\n", query)
			return nil
		}

		table := NewTable("#", "TITLE", "ARTIST", "DURATION", "URI")
		for i, t := range results {
			table.Row(
				strconv.Itoa(i+1),
				TruncateString(t.Name, 40),
				TruncateString(t.ArtistNames(), 30),
				FormatDuration(t.Duration()),
				t.URI,
			)
		}
		table.Flush()
		return nil
	})
}
