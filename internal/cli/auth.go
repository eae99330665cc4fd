package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/auth"
	"github.com/tessro/riffbar/internal/browser"
)

var loginTimeout time.Duration

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the backend session",
	Long:  `Commands for signing in to the backend that holds the Spotify session.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the backend",
	Long: `Opens the backend's login page in a browser and waits until the
session is established.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the local session",
	Long:  `Clears the locally remembered session flag. The backend session itself is not touched.`,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Long:  `Asks the backend whether the session is valid.`,
	RunE:  runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the session now",
	Long:  `Asks the backend to renew the session's credentials.`,
	RunE:  runAuthRefresh,
}

func init() {
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the login to complete")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx := cmd.Context()
	if st, err := e.Guard().Probe(ctx); err == nil && st == auth.Authenticated {
		return report("authenticated", "Already signed in.")
	}

	loginURL := e.LoginURL()
	if !JSONOutput() {
		fmt.Println("Opening browser to sign in...")
	}
	if err := browser.Open(loginURL); err != nil {
		logger.Debug("browser launch failed", "err", err)
		fmt.Printf("Could not open browser automatically.\n")
		fmt.Printf("Please open this URL in your browser:\n\n%s\n\n", loginURL)
	}

	if !JSONOutput() {
		fmt.Println("Waiting for sign-in to complete...")
	}
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	if err := e.WaitForLogin(ctx, 2*time.Second); err != nil {
		return fmt.Errorf("sign-in did not complete: %w", err)
	}
	return report("authenticated", "Signed in.")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	path, err := cfg.StateFile()
	if err != nil {
		return fmt.Errorf("locate session state: %w", err)
	}
	flags, err := auth.NewFileStore(path)
	if err != nil {
		return err
	}

	was, _ := flags.Load()
	if err := flags.Delete(); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}

	if !was {
		return report("not_authenticated", "Not signed in.")
	}
	return report("logged_out", "Signed out locally. The backend session stays until it expires.")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	path, err := cfg.StateFile()
	if err != nil {
		return fmt.Errorf("locate session state: %w", err)
	}
	flags, err := auth.NewFileStore(path)
	if err != nil {
		return err
	}
	remembered, _ := flags.Load()
	modified := flags.ModTime()

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	st, probeErr := e.Guard().Probe(cmd.Context())

	if JSONOutput() {
		out := map[string]any{
			"authenticated": st == auth.Authenticated,
			"remembered":    remembered,
			"backend":       cfg.Backend.URL,
		}
		if !modified.IsZero() {
			out["updated_at"] = modified.Format(time.RFC3339)
		}
		if probeErr != nil {
			out["error"] = probeErr.Error()
		}
		return printJSON(out)
	}

	fmt.Printf("Backend: %s\n", cfg.Backend.URL)
	switch {
	case probeErr != nil:
		fmt.Printf("Could not reach backend: %v\n", probeErr)
		if remembered {
			fmt.Println("Last known state: signed in")
		}
	case st == auth.Authenticated:
		fmt.Println("Signed in.")
	default:
		fmt.Println("Not signed in.")
		fmt.Println("Run 'riffbar auth login' to sign in.")
	}
	if !modified.IsZero() {
		fmt.Printf("Session state updated %s\n", humanize.Time(modified))
	}
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx := cmd.Context()
	st, err := e.Guard().Probe(ctx)
	if err != nil {
		return err
	}
	if st != auth.Authenticated {
		return fmt.Errorf("not signed in. Run 'riffbar auth login' first")
	}

	if err := e.Guard().Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if JSONOutput() {
		return printJSON(map[string]string{
			"status":       "refreshed",
			"refreshed_at": e.Guard().LastRefresh().Format(time.RFC3339),
		})
	}
	fmt.Println("Session refreshed.")
	return nil
}
