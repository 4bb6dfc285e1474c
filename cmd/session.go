// ABOUTME: Builds the SDK manager from configuration
// ABOUTME: Commands reach it through a replaceable factory so tests can stub the org

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/oauth"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/sdk"
)

// session is what the non-interactive commands need from the SDK.
type session interface {
	CurrentAccount() *account.Account
	Authenticate(ctx context.Context) error
	Logout(ctx context.Context)
	WhoAmI(ctx context.Context) (*client.UserInfo, error)
	Query(ctx context.Context, soql string) ([]client.Record, error)
	Close()
}

// newManager wires keyring, OAuth flow and REST client into an sdk.Manager.
func newManager(cfg *config.Config) (*sdk.Manager, error) {
	store, err := account.OpenKeyring(account.KeyringConfig{
		Backend:  cfg.Keyring.Backend,
		Dir:      cfg.Keyring.Dir,
		Password: cfg.Keyring.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	flow := oauth.New(oauth.Config{
		LoginURL:     cfg.LoginURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		HTTPClient:   client.NewHTTPClient(nil),
	})

	return sdk.New(flow, account.NewManager(store), sdk.Options{
		APIVersion:      cfg.APIVersion,
		PushServiceType: cfg.Push.ServiceType,
	}), nil
}

var openSession = func(cfg *config.Config) (session, error) {
	m, err := newManager(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// withSession loads config, opens a session and runs fn. Setup failures are
// reported on w and map to exitFailure.
func withSession(w io.Writer, fn func(cfg *config.Config, s session) int) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitFailure
	}
	setupLogging(cfg, nil)

	s, err := openSession(cfg)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitFailure
	}
	defer s.Close()

	return fn(cfg, s)
}
