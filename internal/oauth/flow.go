// ABOUTME: OAuth 2.0 authorization-code flow with PKCE for the org login server
// ABOUTME: Listens on the loopback redirect URL and accepts pasted redirect URLs

package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrFlowInProgress is returned when Authorize is called while another
	// authorization is still waiting for its redirect.
	ErrFlowInProgress = errors.New("authorization already in progress")
)

// AuthError is an error returned by the authorization server on the redirect.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return "authorization failed: " + e.Code
}

// Config configures a Flow.
type Config struct {
	LoginURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// HTTPClient is used for token, refresh and revoke calls.
	HTTPClient *http.Client
	// OpenBrowser launches the authorization URL. nil uses the system browser.
	OpenBrowser func(url string) error
}

// Flow runs authorization-code logins against one login server.
type Flow struct {
	clientID     string
	clientSecret string
	redirectURL  string
	scopes       []string
	httpClient   *http.Client
	openBrowser  func(string) error

	mu        sync.Mutex
	loginURL  string
	onAuthURL func(string)
	pending   *pendingAuth

	refreshGroup singleflight.Group
}

type pendingAuth struct {
	state    string
	verifier string
	result   chan redirectResult
}

type redirectResult struct {
	code string
	err  error
}

// New creates a Flow
func New(cfg Config) *Flow {
	open := cfg.OpenBrowser
	if open == nil {
		open = browser.OpenURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Flow{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURL:  cfg.RedirectURL,
		scopes:       cfg.Scopes,
		httpClient:   hc,
		openBrowser:  open,
		loginURL:     strings.TrimRight(cfg.LoginURL, "/"),
	}
}

// LoginURL returns the login server new authorizations go to.
func (f *Flow) LoginURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginURL
}

// SetLoginURL switches the login server, e.g. to a sandbox or My Domain host.
func (f *Flow) SetLoginURL(loginURL string) {
	f.mu.Lock()
	f.loginURL = strings.TrimRight(loginURL, "/")
	f.mu.Unlock()
}

// OnAuthURL registers fn to receive every authorization URL, so a UI can show
// it when no browser is available.
func (f *Flow) OnAuthURL(fn func(string)) {
	f.mu.Lock()
	f.onAuthURL = fn
	f.mu.Unlock()
}

func (f *Flow) oauthConfig() *oauth2.Config {
	loginURL := f.LoginURL()
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURL:  f.redirectURL,
		Scopes:       f.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   loginURL + "/services/oauth2/authorize",
			TokenURL:  loginURL + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// clientContext makes the oauth2 package use our HTTP client.
func (f *Flow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// Authorize opens the login page and blocks until the redirect arrives (via
// the loopback listener or HandleRedirect) or ctx is done, then exchanges the
// code for tokens.
func (f *Flow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	p := &pendingAuth{
		state:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
		result:   make(chan redirectResult, 1),
	}

	f.mu.Lock()
	if f.pending != nil {
		f.mu.Unlock()
		return nil, ErrFlowInProgress
	}
	f.pending = p
	f.mu.Unlock()
	defer f.clearPending(p)

	conf := f.oauthConfig()
	authURL := conf.AuthCodeURL(p.state, oauth2.S256ChallengeOption(p.verifier))

	stop := f.listen()
	defer stop()
	f.announce(authURL)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-p.result:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := conf.Exchange(f.clientContext(ctx), res.code, oauth2.VerifierOption(p.verifier))
		if err != nil {
			return nil, fmt.Errorf("exchange authorization code: %w", err)
		}
		slog.Info("Authorization completed", "login_url", f.LoginURL())
		return tok, nil
	}
}

// HandleRedirect delivers a redirect URL to the pending authorization.
// It reports whether the URL was accepted; URLs with no pending flow or a
// mismatched state are ignored.
func (f *Flow) HandleRedirect(u *url.URL) bool {
	if u == nil {
		return false
	}

	f.mu.Lock()
	p := f.pending
	f.mu.Unlock()

	if p == nil {
		slog.Warn("Ignoring redirect with no login in progress", "path", u.Path)
		return false
	}

	q := u.Query()
	if q.Get("state") != p.state {
		slog.Warn("Ignoring redirect with mismatched state", "path", u.Path)
		return false
	}

	var res redirectResult
	switch {
	case q.Get("error") != "":
		res.err = &AuthError{Code: q.Get("error"), Description: q.Get("error_description")}
	case q.Get("code") == "":
		res.err = &AuthError{Code: "invalid_response", Description: "redirect carried no authorization code"}
	default:
		res.code = q.Get("code")
	}

	select {
	case p.result <- res:
		return true
	default:
		// already answered
		return false
	}
}

// CallbackHandler serves the loopback redirect.
func (f *Flow) CallbackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.HandleRedirect(r.URL) {
			http.Error(w, "No login is waiting for this response.", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, callbackPage)
	})
}

// Revoke invalidates token (access or refresh) at the current login server.
func (f *Flow) Revoke(ctx context.Context, token string) error {
	return f.RevokeAt(ctx, f.LoginURL(), token)
}

// RevokeAt invalidates token at baseURL, for accounts that logged in through
// a different login server than the current one.
func (f *Flow) RevokeAt(ctx context.Context, baseURL, token string) error {
	form := url.Values{"token": {token}}
	endpoint := strings.TrimRight(baseURL, "/") + "/services/oauth2/revoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("revoke failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (f *Flow) clearPending(p *pendingAuth) {
	f.mu.Lock()
	if f.pending == p {
		f.pending = nil
	}
	f.mu.Unlock()
}

func (f *Flow) announce(authURL string) {
	f.mu.Lock()
	hook := f.onAuthURL
	f.mu.Unlock()

	if hook != nil {
		hook(authURL)
	}
	if err := f.openBrowser(authURL); err != nil {
		slog.Warn("Could not open browser for login", "error", err)
	}
}

// listen starts the loopback redirect server when the redirect URL points at
// this machine. The returned func shuts it down.
func (f *Flow) listen() func() {
	u, err := url.Parse(f.redirectURL)
	if err != nil || u.Scheme != "http" || !isLoopback(u.Hostname()) {
		return func() {}
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		slog.Warn("Redirect listener unavailable, paste the redirect URL instead", "addr", u.Host, "error", err)
		return func() {}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, f.CallbackHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Redirect listener stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

const callbackPage = `<!doctype html>
<html><head><title>Login complete</title></head>
<body><p>Login complete. You can close this window and return to the terminal.</p></body>
</html>
`
