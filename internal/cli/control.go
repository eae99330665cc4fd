package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/app"
	"github.com/tessro/riffbar/internal/control"
	rerrors "github.com/tessro/riffbar/internal/errors"
)

// transport describes a one-shot playback command.
type transport struct {
	use     string
	aliases []string
	short   string
	status  string
	text    string
	run     func(d *control.Dispatcher, ctx context.Context) error
}

var transports = []transport{
	{use: "pause", short: "Pause playback", status: "paused", text: "⏸ Paused",
		run: (*control.Dispatcher).Pause},
	{use: "resume", aliases: []string{"play"}, short: "Resume playback", status: "playing", text: "▶ Resumed",
		run: (*control.Dispatcher).Resume},
	{use: "toggle", short: "Toggle between play and pause", status: "toggled",
		run: (*control.Dispatcher).Toggle},
	{use: "next", aliases: []string{"skip"}, short: "Skip to next track", status: "skipped", text: "⏭ Skipped to next track",
		run: (*control.Dispatcher).Next},
	{use: "prev", aliases: []string{"previous"}, short: "Go to previous track, or restart once past the threshold", status: "previous",
		run: (*control.Dispatcher).Previous},
	{use: "restart", aliases: []string{"replay"}, short: "Restart current track", status: "restarted", text: "⏪ Restarted track",
		run: (*control.Dispatcher).Restart},
}

var seekCmd = &cobra.Command{
	Use:   "seek <position>",
	Short: "Seek within the current track",
	Long: `Move playback to a position in the current track.

Examples:
  riffbar seek 90       # 1:30
  riffbar seek 2:15
  riffbar seek 1m5s`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

func init() {
	for _, t := range transports {
		rootCmd.AddCommand(t.command())
	}
	rootCmd.AddCommand(seekCmd)
}

func (t transport) command() *cobra.Command {
	return &cobra.Command{
		Use:     t.use,
		Aliases: t.aliases,
		Short:   t.short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, e *app.Engine) error {
				err := t.run(e.Control(), ctx)
				switch {
				case errors.Is(err, rerrors.ErrNoPreviousTrack), errors.Is(err, rerrors.ErrPreviousForbidden):
					return report("unchanged", rerrors.UserMessage(err))
				case err != nil:
					return err
				}
				return report(t.status, outcome(e, t.text))
			})
		},
	}
}

// outcome prefers the command's own confirmation, then whatever the
// dispatcher published.
func outcome(e *app.Engine, text string) string {
	if text != "" {
		return text
	}
	if msg := e.Store().Message(); !msg.Empty() {
		return msg.Text
	}
	if e.Store().IsPlaying() {
		return "▶ Playing"
	}
	return "⏸ Paused"
}

func runSeek(cmd *cobra.Command, args []string) error {
	pos, err := ParsePosition(args[0])
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), func(ctx context.Context, e *app.Engine) error {
		snap := e.Store().Playback()
		if !snap.HasTrack() {
			return fmt.Errorf("nothing is playing")
		}
		if d := snap.Track.Duration(); d > 0 && pos > d {
			return fmt.Errorf("position %s is past the end of the track (%s)", FormatDuration(pos), FormatDuration(d))
		}
		if err := e.Control().Seek(ctx, pos); err != nil {
			return err
		}
		return report("seeked", "⏩ Seeked to "+FormatDuration(pos))
	})
}
