// ABOUTME: Root command for the forceapp CLI
// ABOUTME: Handles global flags, configuration loading and logger setup

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/logger"
)

// Exit codes shared by the non-interactive commands
const (
	exitOK      = 0
	exitFailure = 2
)

var (
	cfgFile    string
	loginURL   string
	clientID   string
	logLevel   string
	jsonOutput bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "forceapp",
	Short: "Salesforce contacts in your terminal",
	Long: `forceapp logs in to a Salesforce org and lists its contacts.

Run "forceapp app" for the full-screen app, or use the plain commands
(login, whoami, query, logout) from scripts.

Environment Variables:
  FORCEAPP_LOGIN_URL   Login host (default: https://login.salesforce.com)
  FORCEAPP_CLIENT_ID   Connected app consumer key
  FORCEAPP_LOG_LEVEL   debug, info, warn or error`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/forceapp/config.yaml)")
	flags.StringVar(&loginURL, "login-url", "", "Login host (overrides FORCEAPP_LOGIN_URL)")
	flags.StringVar(&clientID, "client-id", "", "Connected app consumer key (overrides FORCEAPP_CLIENT_ID)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// bindFlags maps global flags onto config keys. Only flags set on the
// command line take precedence over env and file values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"login_url": "login-url",
		"client_id": "client-id",
		"log.level": "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves configuration from flags, env, .env and the config file.
var loadConfig = func() (*config.Config, error) {
	v := config.New()
	if err := bindFlags(v, rootCmd.PersistentFlags()); err != nil {
		return nil, err
	}
	return config.Load(v, cfgFile)
}

// setupLogging sends logs to stderr for plain commands. Interactive commands
// pass a file, since the TUI owns the terminal.
func setupLogging(cfg *config.Config, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
