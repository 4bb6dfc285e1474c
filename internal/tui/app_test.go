// ABOUTME: Integration tests for the app shell
// ABOUTME: Tests root-view transitions, modal dismissal ordering and URL forwarding

package tui

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/contacts"
)

type fakeHelper struct {
	mu        sync.Mutex
	required  bool
	loginErr  error
	host      string
	account   *account.Account
	logins    int
	pushes    int
	pushErr   error
	acceptURL bool
	handled   []*url.URL
	listener  func(prev, next *account.Account)

	// outbox collects what listeners send while a command runs. Like
	// Program.Send, those messages reach Update before the command's result.
	outbox *recordingSender
}

func (h *fakeHelper) LoginRequired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.required
}

// LoginIfRequired notifies the user-change listener before returning, as the
// account manager does when a login stores the new current account.
func (h *fakeHelper) LoginIfRequired(context.Context) error {
	h.mu.Lock()
	h.logins++
	if h.loginErr != nil {
		err := h.loginErr
		h.mu.Unlock()
		return err
	}
	prev := h.account
	h.required = false
	h.account = &account.Account{UserID: "005A", OrgID: "00D1", Username: "ada@acme.example"}
	next, listener := h.account, h.listener
	h.mu.Unlock()

	if listener != nil && !account.SameUser(prev, next) {
		listener(prev, next)
	}
	return nil
}

func (h *fakeHelper) LoginHost() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.host
}

func (h *fakeHelper) SetLoginHost(loginURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.host = loginURL
}

func (h *fakeHelper) CurrentAccount() *account.Account {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.account
}

func (h *fakeHelper) OnCurrentUserChange(fn func(prev, next *account.Account)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listener = nil
	}
}

func (h *fakeHelper) HandleIdentityProviderResponse(u *url.URL) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, u)
	return h.acceptURL
}

func (h *fakeHelper) RegisterPushNotifications(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushes++
	return h.pushErr
}

type stubSession struct {
	mu      sync.Mutex
	records []client.Record
	err     error
}

func (s *stubSession) Query(context.Context, string) ([]client.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, s.err
}

func (s *stubSession) Authenticate(context.Context) error { return nil }

func (s *stubSession) Logout(context.Context) {}

func newTestApp(helper *fakeHelper, session *stubSession, opts Options) *App {
	if opts.DismissDelay == 0 {
		opts.DismissDelay = -1
	}
	app := New(helper, func() *contacts.Model {
		return contacts.New(session, contacts.Options{Query: config.DefaultQuery})
	}, opts)

	helper.outbox = &recordingSender{}
	helper.OnCurrentUserChange(NewDispatcher(helper.outbox).CurrentUserChanged)
	return app
}

// drive runs cmd and feeds the shell's own messages back into Update until
// nothing is left. Timer-driven messages such as spinner ticks are dropped.
func drive(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	deliver := func(msg tea.Msg) {
		switch msg.(type) {
		case loginCheckedMsg, loginFinishedMsg, loginHostChosenMsg, mainMsg,
			DismissedMsg, pushRegisteredMsg, OpenURLMsg, CurrentUserChangedMsg:
			_, next := app.Update(msg)
			queue = append(queue, next)
		}
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps > 100 {
			t.Fatal("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if h, ok := app.helper.(*fakeHelper); ok && h.outbox != nil {
			sent := h.outbox.msgs
			h.outbox.msgs = nil
			for _, m := range sent {
				deliver(m)
			}
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		deliver(msg)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loggedInApp(t *testing.T, opts Options) (*App, *fakeHelper, *stubSession) {
	t.Helper()
	helper := &fakeHelper{account: &account.Account{UserID: "005A", OrgID: "00D1", Username: "ada@acme.example"}}
	session := &stubSession{records: []client.Record{{ID: "1", Name: "Acme"}}}
	app := newTestApp(helper, session, opts)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	drive(t, app, app.Init())
	if app.Screen() != ScreenMain {
		t.Fatalf("expected main screen, got %s", app.Screen())
	}
	return app, helper, session
}

func TestAppInitialState(t *testing.T) {
	app := newTestApp(&fakeHelper{}, &stubSession{}, Options{})

	if app.Screen() != ScreenInitializing {
		t.Errorf("expected initial screen to be ScreenInitializing, got %s", app.Screen())
	}
	if !strings.Contains(app.View(), "Starting") {
		t.Error("expected placeholder view")
	}
}

func TestScreenConstants(t *testing.T) {
	if ScreenInitializing != 0 {
		t.Errorf("expected ScreenInitializing to be 0, got %d", ScreenInitializing)
	}
	if ScreenAwaitingLogin != 1 {
		t.Errorf("expected ScreenAwaitingLogin to be 1, got %d", ScreenAwaitingLogin)
	}
	if ScreenMain != 2 {
		t.Errorf("expected ScreenMain to be 2, got %d", ScreenMain)
	}
}

func TestLaunch_AlreadyLoggedIn(t *testing.T) {
	app, helper, _ := loggedInApp(t, Options{})

	if helper.logins != 0 {
		t.Errorf("expected no login when already logged in, got %d", helper.logins)
	}
	if app.rootGeneration != 1 {
		t.Errorf("expected one root build, got %d", app.rootGeneration)
	}
	if !app.main.State().LoggedIn {
		t.Error("expected main root to have fetched records")
	}
	view := app.View()
	if !strings.Contains(view, "Acme") || !strings.Contains(view, "ada@acme.example") {
		t.Errorf("expected records and user in view, got:\n%s", view)
	}
}

func TestLaunch_LoginRequired(t *testing.T) {
	helper := &fakeHelper{required: true, host: config.DefaultLoginURL}
	app := newTestApp(helper, &stubSession{}, Options{})

	app.Update(loginCheckedMsg{required: true})
	if app.Screen() != ScreenAwaitingLogin {
		t.Fatalf("expected AwaitingLogin, got %s", app.Screen())
	}
	if app.login == nil || app.login.state != loginPicking {
		t.Fatal("expected host picker")
	}

	_, cmd := app.Update(loginHostChosenMsg{host: config.SandboxLoginURL})
	if helper.LoginHost() != config.SandboxLoginURL {
		t.Errorf("expected sandbox host, got %s", helper.LoginHost())
	}
	if app.login.state != loginWaiting {
		t.Error("expected waiting state while login runs")
	}
	drive(t, app, cmd)

	if helper.logins != 1 {
		t.Errorf("expected one login, got %d", helper.logins)
	}
	if app.Screen() != ScreenMain {
		t.Errorf("expected main after login, got %s", app.Screen())
	}
}

func TestLogin_FailureStaysAwaitingLogin(t *testing.T) {
	helper := &fakeHelper{required: true, loginErr: errors.New("access_denied")}
	app := newTestApp(helper, &stubSession{}, Options{})
	app.Update(loginCheckedMsg{required: true})

	_, cmd := app.Update(loginHostChosenMsg{host: config.DefaultLoginURL})
	drive(t, app, cmd)

	if app.Screen() != ScreenAwaitingLogin {
		t.Fatalf("expected to stay in AwaitingLogin, got %s", app.Screen())
	}
	if app.login.state != loginFailed {
		t.Error("expected failed login state")
	}
	if !strings.Contains(app.View(), "access_denied") {
		t.Error("expected the failure to be shown")
	}

	app.Update(key("l"))
	if app.login.state != loginPicking {
		t.Error("expected l to bring back the host picker")
	}
}

func TestLogin_ShowsAuthURL(t *testing.T) {
	app := newTestApp(&fakeHelper{required: true}, &stubSession{}, Options{})
	app.Update(loginCheckedMsg{required: true})
	app.Update(loginHostChosenMsg{host: config.DefaultLoginURL})

	app.Update(AuthURLMsg{URL: "https://login.salesforce.com/services/oauth2/authorize?client_id=x"})

	if !strings.Contains(app.View(), "services/oauth2/authorize") {
		t.Error("expected auth url in waiting view")
	}
}

func TestUserChange_RebuildsImmediatelyWithoutModal(t *testing.T) {
	app, _, _ := loggedInApp(t, Options{})

	_, cmd := app.Update(CurrentUserChangedMsg{
		Prev: &account.Account{UserID: "005A"},
		Next: &account.Account{UserID: "005B"},
	})
	if app.Screen() != ScreenInitializing {
		t.Fatalf("expected transient Initializing, got %s", app.Screen())
	}

	drive(t, app, cmd)
	if app.Screen() != ScreenMain || app.rootGeneration != 2 {
		t.Errorf("expected rebuilt main root (gen 2), got %s gen %d", app.Screen(), app.rootGeneration)
	}
}

func TestUserChange_WaitsForModalDismissal(t *testing.T) {
	app, _, _ := loggedInApp(t, Options{})

	app.Update(key("i"))
	if app.modal == nil {
		t.Fatal("expected account modal to be presented")
	}

	_, dismiss := app.Update(CurrentUserChangedMsg{Next: &account.Account{UserID: "005B"}})
	if app.Screen() != ScreenMain || app.rootGeneration != 1 {
		t.Fatalf("expected no rebuild while the modal is presented, got %s gen %d", app.Screen(), app.rootGeneration)
	}
	if !app.modal.dismissing || !app.pendingReset {
		t.Fatal("expected dismissal to start and the reset to be deferred")
	}

	// A second change while dismissing does not start another dismissal
	_, again := app.Update(CurrentUserChangedMsg{Next: &account.Account{UserID: "005C"}})
	if again != nil {
		t.Error("expected no second dismissal")
	}

	// Keys are swallowed while the modal is closing
	app.Update(key("r"))
	if app.rootGeneration != 1 {
		t.Error("expected no rebuild before DismissedMsg")
	}

	drive(t, app, dismiss)

	if app.modal != nil {
		t.Error("expected modal gone after DismissedMsg")
	}
	if app.Screen() != ScreenMain || app.rootGeneration != 2 {
		t.Errorf("expected rebuild after dismissal, got %s gen %d", app.Screen(), app.rootGeneration)
	}
}

func TestUserChange_LogoutReturnsToLogin(t *testing.T) {
	app, helper, _ := loggedInApp(t, Options{})

	helper.mu.Lock()
	helper.required = true
	helper.account = nil
	helper.mu.Unlock()

	_, cmd := app.Update(CurrentUserChangedMsg{Prev: &account.Account{UserID: "005A"}})
	drive(t, app, cmd)

	if app.Screen() != ScreenAwaitingLogin {
		t.Errorf("expected AwaitingLogin after logout, got %s", app.Screen())
	}
	if app.main != nil {
		t.Error("expected main root to be dropped")
	}
}

func TestModal_EscDismissesWithoutRebuild(t *testing.T) {
	app, _, _ := loggedInApp(t, Options{})

	app.Update(key("i"))
	if !strings.Contains(app.View(), "Account") {
		t.Error("expected modal in view")
	}

	_, cmd := app.Update(key("esc"))
	drive(t, app, cmd)

	if app.modal != nil {
		t.Error("expected modal dismissed")
	}
	if app.rootGeneration != 1 {
		t.Errorf("expected no rebuild on plain dismissal, got gen %d", app.rootGeneration)
	}
}

func TestStaleRootMessagesAreDropped(t *testing.T) {
	app, _, session := loggedInApp(t, Options{})

	// Refetch issued by the first root
	_, oldFetch := app.Update(key("r"))

	_, cmd := app.Update(CurrentUserChangedMsg{Next: &account.Account{UserID: "005B"}})
	drive(t, app, cmd)
	if app.rootGeneration != 2 {
		t.Fatalf("expected gen 2, got %d", app.rootGeneration)
	}

	session.mu.Lock()
	session.err = errors.New("old session")
	session.mu.Unlock()
	drive(t, app, oldFetch)

	if !app.main.State().LoggedIn {
		t.Error("expected result for the replaced root to be dropped")
	}
}

func TestStaleLoginCheckIsDropped(t *testing.T) {
	helper := &fakeHelper{required: true}
	app := newTestApp(helper, &stubSession{}, Options{})

	// Check issued at launch, answered before the user change landed
	staleMsg := app.checkLogin()()

	helper.mu.Lock()
	helper.required = false
	helper.account = &account.Account{UserID: "005B", OrgID: "00D1"}
	helper.mu.Unlock()
	_, rebuild := app.Update(CurrentUserChangedMsg{Next: &account.Account{UserID: "005B"}})

	app.Update(staleMsg)
	if app.Screen() != ScreenInitializing {
		t.Fatalf("expected the stale check to be ignored, got %s", app.Screen())
	}

	drive(t, app, rebuild)
	if app.Screen() != ScreenMain {
		t.Errorf("expected main from the latest check, got %s", app.Screen())
	}
}

func TestAuthURL_ForwardedToListScreen(t *testing.T) {
	app, _, _ := loggedInApp(t, Options{})
	loginURL := "https://login.salesforce.com/services/oauth2/authorize?client_id=x"

	app.main.Login()
	_, cmd := app.Update(AuthURLMsg{URL: loginURL})
	drive(t, app, cmd)

	if !strings.Contains(app.View(), loginURL) {
		t.Error("expected the list screen to show the login URL")
	}
}

func TestOpenURL_ForwardsToHelper(t *testing.T) {
	helper := &fakeHelper{acceptURL: true}
	app := newTestApp(helper, &stubSession{}, Options{})

	u, _ := url.Parse("http://localhost:1717/OauthRedirect?code=abc&state=xyz")
	app.Update(OpenURLMsg{URL: u})

	if len(helper.handled) != 1 || helper.handled[0] != u {
		t.Fatalf("expected URL to be forwarded verbatim, got %v", helper.handled)
	}
	if !strings.Contains(app.View(), "accepted") {
		t.Error("expected acceptance notice")
	}

	helper.acceptURL = false
	app.Update(OpenURLMsg{URL: u})
	if !strings.Contains(app.View(), "No login is waiting") {
		t.Error("expected ignored notice")
	}
}

func TestPastePrompt(t *testing.T) {
	app, helper, _ := loggedInApp(t, Options{})

	app.Update(key("u"))
	if app.prompt == nil {
		t.Fatal("expected paste prompt")
	}

	app.Update(key("http://localhost:1717/OauthRedirect?code=abc&state=xyz"))
	_, cmd := app.Update(key("enter"))
	if app.prompt != nil {
		t.Error("expected prompt closed after submit")
	}
	drive(t, app, cmd)

	if len(helper.handled) != 1 || helper.handled[0].Query().Get("code") != "abc" {
		t.Errorf("expected pasted URL to reach the helper, got %v", helper.handled)
	}
}

func TestPastePrompt_RejectsBareText(t *testing.T) {
	app, helper, _ := loggedInApp(t, Options{})

	app.Update(key("u"))
	app.Update(key("nonsense"))
	_, cmd := app.Update(key("enter"))

	if cmd != nil || app.prompt == nil {
		t.Error("expected prompt to stay open on invalid input")
	}
	if len(helper.handled) != 0 {
		t.Error("expected nothing forwarded")
	}

	app.Update(key("esc"))
	if app.prompt != nil {
		t.Error("expected esc to close the prompt")
	}
}

func TestPushRegistration(t *testing.T) {
	app, helper, _ := loggedInApp(t, Options{RegisterPush: true})

	if helper.pushes != 1 {
		t.Errorf("expected one push registration, got %d", helper.pushes)
	}

	helper.pushErr = errors.New("registration rejected")
	_, cmd := app.Update(CurrentUserChangedMsg{Next: &account.Account{UserID: "005B"}})
	drive(t, app, cmd)

	if helper.pushes != 2 {
		t.Errorf("expected registration for the rebuilt root, got %d", helper.pushes)
	}
	if app.Screen() != ScreenMain {
		t.Error("expected push failure not to affect the shell")
	}
}

func TestPushRegistration_Disabled(t *testing.T) {
	_, helper, _ := loggedInApp(t, Options{})

	if helper.pushes != 0 {
		t.Errorf("expected no push registration, got %d", helper.pushes)
	}
}

func TestAppViewReturnsContent(t *testing.T) {
	app, _, _ := loggedInApp(t, Options{})

	view := app.View()
	if !strings.Contains(view, "forceapp") {
		t.Error("expected header to contain app name")
	}
	if !strings.Contains(view, "Logout") {
		t.Error("expected footer to show the header action")
	}
	if !strings.Contains(view, "Account") {
		t.Error("expected footer to show the account shortcut")
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestDispatcher(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender)

	next := &account.Account{UserID: "005B"}
	d.CurrentUserChanged(nil, next)
	u, _ := url.Parse("http://localhost:1717/OauthRedirect?code=a")
	d.OpenURL(u)
	d.AuthURL("https://login.example/authorize")

	if len(sender.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.msgs))
	}
	if msg, ok := sender.msgs[0].(CurrentUserChangedMsg); !ok || msg.Next != next {
		t.Errorf("unexpected first message %#v", sender.msgs[0])
	}
	if msg, ok := sender.msgs[1].(OpenURLMsg); !ok || msg.URL != u {
		t.Errorf("unexpected second message %#v", sender.msgs[1])
	}
	if msg, ok := sender.msgs[2].(AuthURLMsg); !ok || msg.URL == "" {
		t.Errorf("unexpected third message %#v", sender.msgs[2])
	}
}

func TestTagGeneration(t *testing.T) {
	if tagGeneration(1, nil) != nil {
		t.Error("expected nil command to stay nil")
	}

	cmd := tagGeneration(3, func() tea.Msg { return "hello" })
	msg, ok := cmd().(mainMsg)
	if !ok || msg.gen != 3 || msg.msg != "hello" {
		t.Errorf("expected tagged message, got %#v", msg)
	}

	quit := tagGeneration(3, tea.Quit)
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg to pass through untagged")
	}
}
