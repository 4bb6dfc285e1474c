// ABOUTME: Configuration loader for forceapp
// ABOUTME: Layers defaults, config file, .env and FORCEAPP_* environment variables via viper

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appName = "forceapp"

	DefaultLoginURL    = "https://login.salesforce.com"
	SandboxLoginURL    = "https://test.salesforce.com"
	DefaultClientID    = "PlatformCLI"
	DefaultRedirectURL = "http://localhost:1717/OauthRedirect"
	DefaultAPIVersion  = "62.0"
	DefaultQuery       = "SELECT Id, Name FROM Contact LIMIT 100"
)

type Config struct {
	// OAuth client
	LoginURL     string   `mapstructure:"login_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`

	// REST API
	APIVersion string `mapstructure:"api_version"`
	Query      string `mapstructure:"query"`

	// Local state
	ConfigDir string        `mapstructure:"config_dir"`
	Keyring   KeyringConfig `mapstructure:"keyring"`
	Push      PushConfig    `mapstructure:"push"`
	Log       LogConfig     `mapstructure:"log"`
}

// KeyringConfig selects where the current account is persisted.
type KeyringConfig struct {
	Backend  string `mapstructure:"backend"`  // empty = OS default, or keychain, secret-service, wincred, file
	Dir      string `mapstructure:"dir"`      // file backend directory
	Password string `mapstructure:"password"` // file backend passphrase
}

// PushConfig controls push-notification device registration after login.
type PushConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceType string `mapstructure:"service_type"`
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance primed with defaults and environment bindings.
// Callers may bind command-line flags onto it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("login_url", DefaultLoginURL)
	v.SetDefault("client_id", DefaultClientID)
	v.SetDefault("client_secret", "")
	v.SetDefault("redirect_url", DefaultRedirectURL)
	v.SetDefault("scopes", []string{"api", "refresh_token"})
	v.SetDefault("api_version", DefaultAPIVersion)
	v.SetDefault("query", DefaultQuery)
	v.SetDefault("config_dir", DefaultConfigDir())
	v.SetDefault("keyring.backend", "")
	v.SetDefault("keyring.dir", "")
	v.SetDefault("keyring.password", "")
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.service_type", "forceapp")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("FORCEAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads .env and the optional config file into v and returns the validated result.
// An empty cfgFile searches $XDG_CONFIG_HOME/forceapp/config.yaml and ./config.yaml.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// .env is optional; existing process env always wins
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LoginURL = strings.TrimRight(ensureScheme(cfg.LoginURL), "/")
	if cfg.Keyring.Dir == "" && cfg.ConfigDir != "" {
		cfg.Keyring.Dir = filepath.Join(cfg.ConfigDir, "keyring")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and URL shapes.
func (c *Config) Validate() error {
	if c.LoginURL == "" {
		return fmt.Errorf("login_url is required")
	}
	if _, err := url.ParseRequestURI(c.LoginURL); err != nil {
		return fmt.Errorf("login_url is invalid: %w", err)
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	redirect, err := url.Parse(c.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("redirect_url %q must be an absolute URL", c.RedirectURL)
	}
	if c.APIVersion == "" {
		return fmt.Errorf("api_version is required")
	}
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("query is required")
	}
	return nil
}

// DefaultConfigDir returns the default config directory under $XDG_CONFIG_HOME or ~/.config
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// ensureScheme adds https:// prefix if the URL has no scheme
func ensureScheme(u string) string {
	if u == "" {
		return u
	}
	if !strings.Contains(u, "://") {
		return "https://" + u
	}
	return u
}
