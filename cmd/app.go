// ABOUTME: Interactive commands for forceapp
// ABOUTME: app runs the full shell around the contact list; contacts runs the list alone

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/logger"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/loginhosts"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/sdk"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/contacts"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Run the full-screen app",
	Long: `Run the full-screen app: check for a stored login, show the login
page when needed, then list contacts. Logs go to debug.log in the config directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runInteractive(ctx, func(ctx context.Context, cfg *config.Config, mgr *sdk.Manager) error {
			newMain := func() *contacts.Model {
				return contacts.New(mgr, contacts.Options{Query: cfg.Query})
			}
			opts := tui.Options{RegisterPush: cfg.Push.Enabled}
			if cfg.ConfigDir != "" {
				opts.Hosts = loginhosts.New(cfg.ConfigDir)
			}
			return tui.Run(ctx, mgr, newMain, opts)
		})
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Run the contact list on its own",
	Long: `Run only the contact list screen. Press a to log in or out, r to refresh, q to quit.
Logging in opens the browser; if none opens, the login page URL is shown on screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runInteractive(ctx, func(ctx context.Context, cfg *config.Config, mgr *sdk.Manager) error {
			m := contacts.New(mgr, contacts.Options{Query: cfg.Query, Standalone: true})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

			mgr.OnAuthURL(func(u string) {
				slog.Info("Login page", "url", u)
				p.Send(contacts.LoginURLMsg{URL: u})
			})
			defer mgr.OnAuthURL(nil)

			_, err := p.Run()
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(contactsCmd)
}

// runInteractive sets up file logging and the manager, then hands both to run.
func runInteractive(ctx context.Context, run func(context.Context, *config.Config, *sdk.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if cfg.ConfigDir != "" {
		f, err := logger.OpenFile(cfg.ConfigDir)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(cfg, logOut)

	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	slog.Info("Starting", "login_url", cfg.LoginURL, "api_version", cfg.APIVersion)
	return run(ctx, cfg, mgr)
}
