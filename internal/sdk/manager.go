// ABOUTME: SDK facade over OAuth, the account manager and the REST client
// ABOUTME: The single session provider injected into the list screen and the app shell

package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/cache"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/oauth"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/push"
)

// userInfoTTL bounds how long WhoAmI answers from memory.
const userInfoTTL = 10 * time.Minute

// Options configures a Manager.
type Options struct {
	APIVersion      string
	PushServiceType string
	// Transport is the base transport for REST calls. nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Manager authenticates the user and runs API calls on their behalf.
// Safe for concurrent use.
type Manager struct {
	flow       *oauth.Flow
	accounts   *account.Manager
	registrar  *push.Registrar
	apiVersion string
	transport  http.RoundTripper

	userInfo *cache.Cache[*client.UserInfo]
}

// New creates a Manager
func New(flow *oauth.Flow, accounts *account.Manager, opts Options) *Manager {
	return &Manager{
		flow:       flow,
		accounts:   accounts,
		registrar:  push.NewRegistrar(opts.PushServiceType),
		apiVersion: opts.APIVersion,
		transport:  opts.Transport,
		userInfo:   cache.New[*client.UserInfo](userInfoTTL, time.Minute),
	}
}

// Close stops background work.
func (m *Manager) Close() {
	m.userInfo.Stop()
}

// CurrentAccount returns a copy of the logged-in account, or nil.
func (m *Manager) CurrentAccount() *account.Account {
	return m.accounts.Current()
}

// LoginRequired reports whether no user is logged in.
func (m *Manager) LoginRequired() bool {
	return m.accounts.Current() == nil
}

// LoginIfRequired runs the login flow only when no user is logged in.
func (m *Manager) LoginIfRequired(ctx context.Context) error {
	if !m.LoginRequired() {
		return nil
	}
	return m.Authenticate(ctx)
}

// SetLoginHost switches the login server used by the next login.
func (m *Manager) SetLoginHost(loginURL string) {
	m.flow.SetLoginURL(loginURL)
	slog.Info("Login host changed", "login_url", m.flow.LoginURL())
}

// LoginHost returns the login server used by the next login.
func (m *Manager) LoginHost() string {
	return m.flow.LoginURL()
}

// OnAuthURL forwards every authorization URL to fn.
func (m *Manager) OnAuthURL(fn func(string)) {
	m.flow.OnAuthURL(fn)
}

// OnCurrentUserChange registers fn for login, logout and user switches. fn
// runs on whichever goroutine made the change.
func (m *Manager) OnCurrentUserChange(fn func(prev, next *account.Account)) func() {
	return m.accounts.Subscribe(fn)
}

// HandleIdentityProviderResponse delivers a redirect URL to the pending login.
func (m *Manager) HandleIdentityProviderResponse(u *url.URL) bool {
	return m.flow.HandleRedirect(u)
}

// Authenticate runs the interactive login and makes the result the current
// account.
func (m *Manager) Authenticate(ctx context.Context) error {
	tok, err := m.flow.Authorize(ctx)
	if err != nil {
		return &Failure{Kind: LoginFailure, Err: err}
	}

	id, err := oauth.IdentityFromToken(tok)
	if err != nil {
		return &Failure{Kind: LoginFailure, Err: err}
	}

	acct := &account.Account{
		UserID:      id.UserID,
		OrgID:       id.OrgID,
		LoginURL:    m.flow.LoginURL(),
		InstanceURL: id.InstanceURL,
		IdentityURL: id.IdentityURL,
	}
	acct.SetToken(tok)

	// The account is not current yet, so refreshed tokens must not be persisted.
	api := m.newClient(acct, oauth2.StaticTokenSource(tok))
	info, err := api.UserInfo(ctx)
	switch {
	case err == nil:
		acct.UserID = info.UserID
		acct.OrgID = info.OrganizationID
		acct.Username = info.PreferredUsername
		acct.DisplayName = info.Name
	case acct.UserID == "":
		return &Failure{Kind: LoginFailure, Err: fmt.Errorf("resolve user: %w", err)}
	default:
		slog.Warn("User info unavailable after login", "user_id", acct.UserID, "error", err)
	}

	if err := m.accounts.SetCurrent(acct); err != nil {
		return &Failure{Kind: LoginFailure, Err: fmt.Errorf("save account: %w", err)}
	}
	if info != nil {
		m.userInfo.Set(userKey(acct), info)
	}

	slog.Info("Logged in", "user", acct.Label(), "instance_url", acct.InstanceURL)
	return nil
}

// Logout revokes the current tokens and forgets the account. It never fails:
// revoke and storage problems are logged.
func (m *Manager) Logout(ctx context.Context) {
	acct := m.accounts.Current()
	if acct == nil {
		slog.Debug("Logout with no current user")
		return
	}

	token := acct.RefreshToken
	if token == "" {
		token = acct.AccessToken
	}
	revokeURL := acct.LoginURL
	if revokeURL == "" {
		revokeURL = m.flow.LoginURL()
	}
	if err := m.flow.RevokeAt(ctx, revokeURL, token); err != nil {
		slog.Warn("Token revoke failed", "user", acct.Label(), "error", err)
	}

	m.userInfo.Clear(userKey(acct))
	if err := m.accounts.Logout(); err != nil {
		slog.Warn("Failed to clear stored account", "error", err)
	}
}

// Query runs soql as the current user, following result pages until done.
func (m *Manager) Query(ctx context.Context, soql string) ([]client.Record, error) {
	acct := m.accounts.Current()
	if acct == nil {
		return nil, &Failure{Kind: QueryFailure, Err: ErrNotAuthenticated}
	}

	var records []client.Record
	err := m.withClient(ctx, acct, func(api *client.Client) error {
		resp, err := api.Query(ctx, soql)
		if err != nil {
			return err
		}
		records = resp.Records
		for !resp.Done && resp.NextRecordsURL != "" {
			resp, err = api.QueryMore(ctx, resp.NextRecordsURL)
			if err != nil {
				return err
			}
			records = append(records, resp.Records...)
		}
		return nil
	})
	if err != nil {
		return nil, &Failure{Kind: QueryFailure, Err: err}
	}
	return records, nil
}

// WhoAmI returns the identity provider's view of the current user.
func (m *Manager) WhoAmI(ctx context.Context) (*client.UserInfo, error) {
	acct := m.accounts.Current()
	if acct == nil {
		return nil, ErrNotAuthenticated
	}

	key := userKey(acct)
	if info, ok := m.userInfo.Get(key); ok {
		return info, nil
	}

	var info *client.UserInfo
	err := m.withClient(ctx, acct, func(api *client.Client) error {
		var err error
		info, err = api.UserInfo(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.userInfo.Set(key, info)
	return info, nil
}

// RegisterPushNotifications registers this installation for the current user.
func (m *Manager) RegisterPushNotifications(ctx context.Context) error {
	acct := m.accounts.Current()
	if acct == nil {
		return &Failure{Kind: NotificationRegistrationFailure, Err: ErrNotAuthenticated}
	}

	deviceID, err := m.accounts.DeviceID()
	if err != nil {
		return &Failure{Kind: NotificationRegistrationFailure, Err: err}
	}

	err = m.withClient(ctx, acct, func(api *client.Client) error {
		_, err := m.registrar.Register(ctx, api, deviceID)
		return err
	})
	if err != nil {
		return &Failure{Kind: NotificationRegistrationFailure, Err: err}
	}
	return nil
}

// withClient calls fn with a client for acct. A 401 triggers one forced
// token refresh and a second attempt.
func (m *Manager) withClient(ctx context.Context, acct *account.Account, fn func(*client.Client) error) error {
	err := fn(m.newClient(acct, m.flow.TokenSource(ctx, acct.Token(), m.persistToken)))
	if !client.IsUnauthorized(err) || acct.RefreshToken == "" {
		return err
	}

	slog.Info("Access token rejected, refreshing", "user", acct.Label())
	fresh, rerr := m.flow.Refresh(ctx, acct.Token())
	if rerr != nil {
		slog.Warn("Token refresh failed", "user", acct.Label(), "error", rerr)
		return err
	}
	m.persistToken(fresh)
	acct.SetToken(fresh)

	return fn(m.newClient(acct, oauth2.StaticTokenSource(acct.Token())))
}

func (m *Manager) newClient(acct *account.Account, ts oauth2.TokenSource) *client.Client {
	hc := &http.Client{
		Timeout: client.DefaultTimeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   client.NewLoggingTransport(m.transport),
		},
	}
	return client.New(acct.InstanceURL, m.apiVersion, hc)
}

func (m *Manager) persistToken(tok *oauth2.Token) {
	if err := m.accounts.UpdateToken(tok); err != nil {
		slog.Warn("Failed to persist refreshed token", "error", err)
	}
}

func userKey(a *account.Account) string {
	return a.OrgID + "/" + a.UserID
}
