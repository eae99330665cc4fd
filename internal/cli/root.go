package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/app"
	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/config"
	rerrors "github.com/tessro/riffbar/internal/errors"
	"github.com/tessro/riffbar/internal/state"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg     *config.Config
	logger  *log.Logger
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "riffbar",
	Short: "Control a remote Spotify session from the terminal",
	Long: `riffbar talks to a Spotify session held by a backend service. It shows
what is playing, keeps the view in sync and sends transport, queue and
search commands.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd != configSetCmd && cmd != configInitCmd); err != nil {
			return err
		}
		return initLogger(cmd.Name() == tuiCmd.Name())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.riffbarrc or $XDG_CONFIG_HOME/riffbar/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig(validate bool) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil && !validate && errors.Is(err, rerrors.ErrConfigNotFound) {
		// config init and set may be pointed at a file that does not exist yet.
		cfg, err = config.LoadFrom("")
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !validate {
		return nil
	}
	return cfg.Validate()
}

// initLogger builds the process logger from [log]. The dashboard owns the
// terminal, so it only ever logs to the configured file.
func initLogger(dashboard bool) error {
	var out io.Writer = os.Stderr
	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		out = f
	case dashboard:
		out = io.Discard
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	} else if out == os.Stderr && level < log.WarnLevel {
		// One-shot commands print their own results.
		level = log.WarnLevel
	}

	logger = log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "riffbar",
	})
	return nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if rerrors.IsCanceled(err) {
			return
		}
		stop()
		fmt.Fprintln(os.Stderr, rerrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}

// newEngine builds an engine from the loaded config.
func newEngine(opts ...app.Option) (*app.Engine, error) {
	return app.FromConfig(cfg, logger, opts...)
}

// withSession builds an engine, syncs once and runs fn while the session is
// valid. Nothing keeps running after fn returns.
func withSession(ctx context.Context, fn func(ctx context.Context, e *app.Engine) error) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	if err := requireSession(ctx, e); err != nil {
		return err
	}
	return fn(ctx, e)
}

// requireSession syncs e once and fails unless the session is valid and
// every fetch succeeded.
func requireSession(ctx context.Context, e *app.Engine) error {
	result, err := syncSession(ctx, e)
	if err != nil {
		return err
	}
	if result.HasErrors() {
		return errors.Join(result.Errors...)
	}
	return nil
}

// syncSession syncs e once. Fetch failures are left in the result for the
// caller to weigh; only a missing session is an error.
func syncSession(ctx context.Context, e *app.Engine) (*rerrors.PartialResult[state.View], error) {
	st, result, err := e.Once(ctx)
	if err != nil {
		return nil, err
	}
	if st != auth.Authenticated {
		return nil, rerrors.WithSuggestion(rerrors.ErrUnauthorized, "Run 'riffbar auth login' to sign in")
	}
	return result, nil
}
