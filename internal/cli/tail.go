package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/app"
	"github.com/tessro/riffbar/internal/auth"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/tail"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
	tailInterval  time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow playback changes in real-time",
	Long: `Watch the remote session and print changes as they happen.

Events tracked:
  - Track changes (new song started)
  - Track completions (song finished)
  - Track skips (song skipped before completion)
  - Pause/Resume
  - Queue changes
  - Status messages and session expiry

Templates see .Type .Emoji .Time .Title .Artist .Album .URI .Playing
.Progress .Message and .Queued, e.g. --format '{{.Artist}} - {{.Title}}'.`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")
	tailCmd.Flags().DurationVarP(&tailInterval, "interval", "i", 0, "poll interval (default from config)")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	formatter, err := tail.NewFormatter(
		tail.WithEmoji(!tailNoEmoji),
		tail.WithTimestamp(tailTimestamp),
		tail.WithTemplate(tailFormat),
	)
	if err != nil {
		return err
	}

	var opts []app.Option
	if tailInterval > 0 {
		opts = append(opts, app.WithPollInterval(tailInterval))
	}
	e, err := newEngine(opts...)
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, err := e.Start(ctx)
	if err != nil {
		return err
	}
	if st != auth.Authenticated {
		return rerrors.WithSuggestion(rerrors.ErrUnauthorized, "Run 'riffbar auth login' to sign in")
	}

	watcher := tail.NewWatcher(e.Store())
	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Run(ctx)
	}()

	for event := range watcher.Events() {
		fmt.Println(formatter.Format(event))
		if event.Type == tail.EventSessionExpired {
			return rerrors.WithSuggestion(rerrors.ErrSessionExpired, "Run 'riffbar auth login' to sign in again")
		}
	}

	if err := <-errCh; err != nil && !rerrors.IsCanceled(err) {
		return err
	}
	return nil
}
