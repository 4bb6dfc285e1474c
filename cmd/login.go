// ABOUTME: Login and logout commands for forceapp
// ABOUTME: Runs the browser login without the TUI, for scripts and first-time setup

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the browser",
	Long: `Open the Salesforce login page in the browser and wait for the redirect.
The account is stored in the OS keyring and reused by the other commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runLogin(ctx, os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored session and forget the account",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		runLogout(ctx, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// runLogin authenticates and returns exit code
func runLogin(ctx context.Context, w io.Writer) int {
	return withSession(w, func(cfg *config.Config, s session) int {
		if n, ok := s.(interface{ OnAuthURL(func(string)) }); ok {
			n.OnAuthURL(func(u string) {
				fmt.Fprintf(w, "Opening %s in your browser.\nIf nothing opens, visit:\n  %s\n", cfg.LoginURL, u)
			})
		}

		if err := s.Authenticate(ctx); err != nil {
			fmt.Fprintf(w, "Login failed: %v\n", err)
			return exitFailure
		}

		fmt.Fprintf(w, "Logged in as %s\n", s.CurrentAccount().Label())
		return exitOK
	})
}

// runLogout always succeeds; revoke failures are only logged.
func runLogout(ctx context.Context, w io.Writer) int {
	withSession(w, func(_ *config.Config, s session) int {
		if s.CurrentAccount() == nil {
			fmt.Fprintln(w, "Not logged in.")
			return exitOK
		}
		s.Logout(ctx)
		fmt.Fprintln(w, "Logged out.")
		return exitOK
	})
	return exitOK
}
