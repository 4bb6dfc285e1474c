// ABOUTME: Root bubbletea model for the identity-provider app shell
// ABOUTME: Swaps Initializing, AwaitingLogin and Main roots and rebuilds on user changes

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/contacts"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/icons"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/styles"
)

// Screen represents the current root view
type Screen int

const (
	ScreenInitializing Screen = iota
	ScreenAwaitingLogin
	ScreenMain
)

func (s Screen) String() string {
	switch s {
	case ScreenInitializing:
		return "initializing"
	case ScreenAwaitingLogin:
		return "awaiting-login"
	case ScreenMain:
		return "main"
	default:
		return "unknown"
	}
}

// Layout constants
const (
	minTerminalWidth = 80 // Minimum frame width
	frameOverhead    = 2  // header + footer lines
)

// defaultDismissDelay is how long a modal takes to close.
const defaultDismissDelay = 150 * time.Millisecond

// IdentityHelper is what the shell needs from the SDK.
type IdentityHelper interface {
	LoginRequired() bool
	LoginIfRequired(ctx context.Context) error
	LoginHost() string
	SetLoginHost(loginURL string)
	CurrentAccount() *account.Account
	OnCurrentUserChange(fn func(prev, next *account.Account)) func()
	HandleIdentityProviderResponse(u *url.URL) bool
	RegisterPushNotifications(ctx context.Context) error
}

// Options configures the shell.
type Options struct {
	// RegisterPush requests push registration each time a main root is installed.
	RegisterPush bool
	// DismissDelay overrides the modal close time. Negative closes immediately.
	DismissDelay time.Duration
	// Hosts remembers login hosts across runs. nil offers only the defaults.
	Hosts HostHistory
}

// HostHistory is the recent login host store. *loginhosts.History satisfies it.
type HostHistory interface {
	List() []string
	Add(host string) error
}

// App is the root model for the TUI
type App struct {
	helper  IdentityHelper
	newMain func() *contacts.Model
	opts    Options

	screen Screen
	width  int
	height int

	spinner        spinner.Model
	login          *loginView
	main           *contacts.Model
	rootGeneration int

	checkSeq int // id of the newest login check; older answers are dropped

	// pendingHost is the host of the login in flight. It outlives the login
	// view, which a user change tears down before the login reports back.
	pendingHost string

	modal        *accountModal
	pendingReset bool
	prompt       *urlPrompt
	notice       string
}

// New creates the shell with the Initializing placeholder installed.
// newMain builds a fresh main root each time one is installed.
func New(helper IdentityHelper, newMain func() *contacts.Model, opts Options) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &App{
		helper:  helper,
		newMain: newMain,
		opts:    opts,
		screen:  ScreenInitializing,
		spinner: s,
	}
}

// Screen returns the current root view
func (a *App) Screen() Screen {
	return a.screen
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.checkLogin())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.main != nil {
			a.main.SetSize(a.contentWidth(), a.contentHeight())
		}
		return a, nil

	case spinner.TickMsg:
		if a.screen != ScreenInitializing {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)

	case loginCheckedMsg:
		if a.screen != ScreenInitializing || msg.seq != a.checkSeq {
			slog.Debug("Dropping stale login check", "seq", msg.seq, "latest", a.checkSeq)
			return a, nil
		}
		if !msg.required {
			return a, a.installMain()
		}
		return a, a.showLogin()

	case loginHostChosenMsg:
		a.helper.SetLoginHost(msg.host)
		a.pendingHost = msg.host
		if a.login != nil {
			a.login.host = msg.host
		}
		return a, a.startLogin()

	case AuthURLMsg:
		if a.login != nil {
			a.login.authURL = msg.URL
			return a, nil
		}
		// A login started from the list screen's header action
		if a.main != nil {
			_, cmd := a.main.Update(contacts.LoginURLMsg{URL: msg.URL})
			return a, a.tagMain(cmd)
		}
		return a, nil

	case loginFinishedMsg:
		if msg.err != nil {
			slog.Warn("Login failed", "error", msg.err)
			a.pendingHost = ""
			if a.screen == ScreenAwaitingLogin && a.login != nil {
				a.login.fail(msg.err)
			}
			return a, nil
		}
		// The user-change notification usually arrives first and has already
		// rebuilt the root, so the host is saved whatever the screen.
		a.rememberHost()
		if a.screen == ScreenAwaitingLogin {
			return a, a.installMain()
		}
		return a, nil

	case CurrentUserChangedMsg:
		slog.Info("Current user changed, resetting view state")
		return a, a.resetViewState()

	case DismissedMsg:
		a.modal = nil
		if a.pendingReset {
			a.pendingReset = false
			return a, a.rebuildRoot()
		}
		return a, nil

	case OpenURLMsg:
		a.handleOpenURL(msg.URL)
		return a, nil

	case pushRegisteredMsg:
		if msg.err != nil {
			slog.Warn("Push notification registration failed", "error", msg.err)
		} else {
			slog.Info("Registered for push notifications")
		}
		return a, nil

	case mainMsg:
		if msg.gen != a.rootGeneration || a.main == nil {
			slog.Debug("Dropping message for replaced root", "gen", msg.gen, "current", a.rootGeneration)
			return a, nil
		}
		_, cmd := a.main.Update(msg.msg)
		return a, a.tagMain(cmd)

	default:
		// Forward unknown messages to the login form (needed for huh form internals)
		if a.screen == ScreenAwaitingLogin && a.login != nil {
			return a, a.login.update(msg)
		}
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if a.login != nil {
			a.login.abort()
		}
		return a, tea.Quit
	}

	if a.prompt != nil {
		cmd, done := a.prompt.update(msg)
		if done {
			a.prompt = nil
		}
		return a, cmd
	}

	// A presented modal swallows input until it is gone
	if a.modal != nil {
		switch msg.String() {
		case "esc", "i", "q":
			if !a.modal.dismissing {
				return a, a.dismissModal()
			}
		}
		return a, nil
	}

	switch a.screen {
	case ScreenInitializing:
		if msg.String() == "q" {
			return a, tea.Quit
		}

	case ScreenAwaitingLogin:
		return a.updateAwaitingLogin(msg)

	case ScreenMain:
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "i":
			a.modal = newAccountModal(a.helper.CurrentAccount())
			return a, nil
		case "u":
			a.openPrompt()
			return a, nil
		}
		a.notice = ""
		_, cmd := a.main.Update(msg)
		return a, a.tagMain(cmd)
	}

	return a, nil
}

func (a *App) updateAwaitingLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.login == nil {
		return a, nil
	}

	switch a.login.state {
	case loginPicking:
		return a, a.login.update(msg)
	case loginWaiting:
		switch msg.String() {
		case "u":
			a.openPrompt()
		case "esc":
			a.login.abort()
		case "q":
			a.login.abort()
			return a, tea.Quit
		}
	case loginFailed:
		switch msg.String() {
		case "l":
			return a, a.showLogin()
		case "u":
			a.openPrompt()
		case "q":
			return a, tea.Quit
		}
	}
	return a, nil
}

// checkLogin asks the helper whether a login is needed. Only the answer to
// the latest check is acted on.
func (a *App) checkLogin() tea.Cmd {
	a.checkSeq++
	helper, seq := a.helper, a.checkSeq
	return func() tea.Msg {
		return loginCheckedMsg{seq: seq, required: helper.LoginRequired()}
	}
}

// showLogin installs the login view with a fresh host picker
func (a *App) showLogin() tea.Cmd {
	a.screen = ScreenAwaitingLogin
	a.main = nil
	var recent []string
	if a.opts.Hosts != nil {
		recent = a.opts.Hosts.List()
	}
	a.login = newLoginView(a.helper.LoginHost(), recent)
	return a.login.init()
}

// startLogin runs LoginIfRequired for the chosen host
func (a *App) startLogin() tea.Cmd {
	if a.login == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.login.state = loginWaiting
	a.login.err = nil
	a.login.cancel = cancel

	helper := a.helper
	return func() tea.Msg {
		defer cancel()
		return loginFinishedMsg{err: helper.LoginIfRequired(ctx)}
	}
}

func (a *App) rememberHost() {
	host := a.pendingHost
	a.pendingHost = ""
	if a.opts.Hosts == nil || host == "" {
		return
	}
	if err := a.opts.Hosts.Add(host); err != nil {
		slog.Warn("Failed to save login host", "host", host, "error", err)
	}
}

// installMain replaces the root with a new main view
func (a *App) installMain() tea.Cmd {
	a.rootGeneration++
	a.screen = ScreenMain
	a.login = nil
	a.main = a.newMain()
	if a.width > 0 {
		a.main.SetSize(a.contentWidth(), a.contentHeight())
	}
	slog.Debug("Main root installed", "gen", a.rootGeneration)

	cmds := []tea.Cmd{a.tagMain(a.main.Init())}
	if a.opts.RegisterPush {
		cmds = append(cmds, a.registerPush())
	}
	return tea.Batch(cmds...)
}

// resetViewState rebuilds the root for a new current user. A presented modal
// is dismissed first and the rebuild waits for DismissedMsg.
func (a *App) resetViewState() tea.Cmd {
	if a.modal != nil {
		a.pendingReset = true
		if a.modal.dismissing {
			return nil
		}
		return a.dismissModal()
	}
	return a.rebuildRoot()
}

// rebuildRoot drops the current root and starts over from Initializing.
// Its login check supersedes any still in flight.
func (a *App) rebuildRoot() tea.Cmd {
	if a.login != nil {
		a.login.abort()
	}
	a.main = nil
	a.login = nil
	a.prompt = nil
	a.screen = ScreenInitializing
	return tea.Batch(a.spinner.Tick, a.checkLogin())
}

func (a *App) dismissModal() tea.Cmd {
	a.modal.dismissing = true

	delay := a.opts.DismissDelay
	if delay == 0 {
		delay = defaultDismissDelay
	}
	if delay < 0 {
		return func() tea.Msg { return DismissedMsg{} }
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return DismissedMsg{} })
}

func (a *App) openPrompt() {
	a.prompt = newURLPrompt()
	a.notice = ""
}

func (a *App) handleOpenURL(u *url.URL) {
	if u == nil {
		return
	}
	if a.helper.HandleIdentityProviderResponse(u) {
		slog.Info("Identity provider response accepted")
		a.notice = "Login response accepted"
		return
	}
	slog.Warn("Identity provider response ignored", "path", u.Path)
	a.notice = "No login is waiting for that URL"
}

func (a *App) registerPush() tea.Cmd {
	helper := a.helper
	return func() tea.Msg {
		return pushRegisteredMsg{err: helper.RegisterPushNotifications(context.Background())}
	}
}

func (a *App) tagMain(cmd tea.Cmd) tea.Cmd {
	return tagGeneration(a.rootGeneration, cmd)
}

// View implements tea.Model
func (a *App) View() string {
	var content string

	switch a.screen {
	case ScreenInitializing:
		content = a.viewInitializing()
	case ScreenAwaitingLogin:
		if a.login != nil {
			content = a.login.view()
		}
	case ScreenMain:
		if a.main != nil {
			content = a.main.View()
		}
	}

	if a.prompt != nil {
		content += "\n\n" + a.prompt.view()
	}
	if a.notice != "" {
		content += "\n" + styles.LabelStyle.Render(a.notice)
	}
	if a.modal != nil {
		content = overlay(a.modal.view(), a.contentWidth(), a.contentHeight())
	}

	return a.wrapWithFrame(content)
}

func (a *App) viewInitializing() string {
	return a.spinner.View() + " Starting…"
}

// contentWidth is the width available inside the frame
func (a *App) contentWidth() int {
	return max(a.frameWidth()-2, 1)
}

// contentHeight is the height available between header and footer
func (a *App) contentHeight() int {
	return max(a.height-frameOverhead, 1)
}

func (a *App) frameWidth() int {
	// Guard against zero/small width before WindowSizeMsg is received
	if a.width < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width
}

// renderHeader creates the header bar with app branding and the current user
func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftText := fmt.Sprintf(" %s %s ", icons.App.String(), titleStyle.Render("forceapp"))

	rightText := ""
	if a.screen == ScreenMain {
		if acct := a.helper.CurrentAccount(); acct != nil {
			rightText = " " + contextStyle.Render(icons.User.String()+" "+acct.Label()) + " "
		}
	}

	leftWidth := lipgloss.Width(leftText)
	rightWidth := lipgloss.Width(rightText)
	fillWidth := width - 4 - leftWidth - rightWidth // -4 for ╭─ and ─╮
	if fillWidth < 0 {
		fillWidth = 0
	}

	header := "╭─" + leftText + strings.Repeat("─", fillWidth) + rightText + "─╮"
	return borderStyle.Render(header)
}

// renderFooter creates the footer with keyboard shortcuts
func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)

	var shortcuts []string
	switch {
	case a.prompt != nil:
		shortcuts = []string{"Enter Submit", "Esc Cancel"}
	case a.modal != nil:
		shortcuts = []string{"Esc Close"}
	case a.screen == ScreenInitializing:
		shortcuts = []string{"q Quit"}
	case a.screen == ScreenAwaitingLogin && a.login != nil:
		switch a.login.state {
		case loginPicking:
			shortcuts = []string{"↑↓ Select", "Enter Log in"}
		case loginWaiting:
			shortcuts = []string{"u Paste URL", "Esc Cancel", "q Quit"}
		case loginFailed:
			shortcuts = []string{"l Retry", "u Paste URL", "q Quit"}
		}
	case a.screen == ScreenMain && a.main != nil:
		shortcuts = append(a.main.ShortHelp(), "i Account", "u Paste URL", "q Quit")
	}

	var styled []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		if len(parts) == 2 {
			styled = append(styled, keyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
		} else {
			styled = append(styled, s)
		}
	}

	leftText := " " + strings.Join(styled, "  ") + " "
	fillWidth := width - 4 - lipgloss.Width(leftText) // -4 for ╰─ and ─╯
	if fillWidth < 0 {
		fillWidth = 0
	}

	footer := "╰─" + leftText + strings.Repeat("─", fillWidth) + "─╯"
	return borderStyle.Render(footer)
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}

// Run starts the shell and hands user-change and login-URL callbacks to it
// through a Dispatcher.
func Run(ctx context.Context, helper IdentityHelper, newMain func() *contacts.Model, opts Options) error {
	app := New(helper, newMain, opts)

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	d := NewDispatcher(p)
	unsubscribe := helper.OnCurrentUserChange(d.CurrentUserChanged)
	defer unsubscribe()

	if n, ok := helper.(interface{ OnAuthURL(func(string)) }); ok {
		n.OnAuthURL(d.AuthURL)
		defer n.OnAuthURL(nil)
	}

	_, err := p.Run()
	return err
}
