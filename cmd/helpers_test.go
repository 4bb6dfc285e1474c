// ABOUTME: Shared test doubles for the command tests
// ABOUTME: Replaces config loading and the session factory with in-memory stubs

package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
)

type stubSession struct {
	account *account.Account

	authErr  error
	authURL  string
	info     *client.UserInfo
	infoErr  error
	records  []client.Record
	queryErr error

	onAuthURL func(string)
	queries   []string
	logouts   int
	closed    bool
}

func (s *stubSession) CurrentAccount() *account.Account { return s.account }

func (s *stubSession) OnAuthURL(fn func(string)) { s.onAuthURL = fn }

func (s *stubSession) Authenticate(ctx context.Context) error {
	if s.onAuthURL != nil && s.authURL != "" {
		s.onAuthURL(s.authURL)
	}
	if s.authErr != nil {
		return s.authErr
	}
	s.account = testAccount()
	return nil
}

func (s *stubSession) Logout(ctx context.Context) {
	s.logouts++
	s.account = nil
}

func (s *stubSession) WhoAmI(ctx context.Context) (*client.UserInfo, error) {
	return s.info, s.infoErr
}

func (s *stubSession) Query(ctx context.Context, soql string) ([]client.Record, error) {
	s.queries = append(s.queries, soql)
	return s.records, s.queryErr
}

func (s *stubSession) Close() { s.closed = true }

func testAccount() *account.Account {
	return &account.Account{
		UserID:      "005xx0000001",
		OrgID:       "00Dxx0000001",
		Username:    "ada@acme.example",
		DisplayName: "Ada Lovelace",
		LoginURL:    config.DefaultLoginURL,
		InstanceURL: "https://acme.my.salesforce.com",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LoginURL:    config.DefaultLoginURL,
		ClientID:    config.DefaultClientID,
		RedirectURL: config.DefaultRedirectURL,
		APIVersion:  config.DefaultAPIVersion,
		Query:       config.DefaultQuery,
		Log:         config.LogConfig{Level: "error"},
	}
}

// useStubs points the command factories at s for the duration of the test.
func useStubs(t *testing.T, s *stubSession) {
	t.Helper()
	origLoad, origOpen := loadConfig, openSession
	loadConfig = func() (*config.Config, error) { return testConfig(), nil }
	openSession = func(*config.Config) (session, error) { return s, nil }
	t.Cleanup(func() {
		loadConfig, openSession = origLoad, origOpen
		jsonOutput = false
	})
}

// useBrokenConfig makes config loading fail.
func useBrokenConfig(t *testing.T) {
	t.Helper()
	orig := loadConfig
	loadConfig = func() (*config.Config, error) { return nil, errors.New("client_id is required") }
	t.Cleanup(func() { loadConfig = orig })
}
