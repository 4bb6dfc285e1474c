// ABOUTME: Session-gated record list screen
// ABOUTME: Fetches records on mount and toggles a Login/Logout header action from the fetch outcome

package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/icons"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/styles"
)

// Session is what the screen needs from the SDK.
type Session interface {
	Query(ctx context.Context, soql string) ([]client.Record, error)
	Authenticate(ctx context.Context) error
	Logout(ctx context.Context)
}

// State is the screen's session view. LoggedIn reflects the last accepted
// fetch, login or logout outcome.
type State struct {
	LoggedIn bool
	Records  []client.Record
}

// HeaderAction is the right-hand header control.
type HeaderAction struct {
	Label    string
	Activate func() tea.Cmd
}

// recordsFetchedMsg is sent when a query completes
type recordsFetchedMsg struct {
	seq     uint64
	records []client.Record
	err     error
}

// loginCompletedMsg is sent when the authentication flow finishes
type loginCompletedMsg struct {
	err error
}

// logoutCompletedMsg is sent when sign-out finishes
type logoutCompletedMsg struct{}

// LoginURLMsg carries the login page URL of a login in progress, shown in
// the status line for when no browser opened.
type LoginURLMsg struct {
	URL string
}

// Options configures the screen.
type Options struct {
	Title      string
	Query      string
	Standalone bool // q quits the program
}

type keyMap struct {
	Action  key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Action:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "login/logout")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

// Model is the list screen
type Model struct {
	session    Session
	title      string
	query      string
	standalone bool

	state State
	seq   uint64 // id of the newest fetch; older responses are dropped
	busy  string

	loggingIn bool
	loginURL  string

	keys     keyMap
	viewport viewport.Model
	cursor   int
	width    int
	height   int
}

// New creates the screen in the logged-out, empty state
func New(session Session, opts Options) *Model {
	title := opts.Title
	if title == "" {
		title = "Contacts"
	}
	vp := viewport.New(80, 10)
	return &Model{
		session:    session,
		title:      title,
		query:      opts.Query,
		standalone: opts.Standalone,
		state:      State{LoggedIn: false, Records: []client.Record{}},
		keys:       defaultKeyMap(),
		viewport:   vp,
	}
}

// State returns a copy of the current session state
func (m *Model) State() State {
	records := make([]client.Record, len(m.state.Records))
	copy(records, m.state.Records)
	return State{LoggedIn: m.state.LoggedIn, Records: records}
}

// Init implements tea.Model. Mounting issues exactly one fetch.
func (m *Model) Init() tea.Cmd {
	return m.FetchRecords()
}

// FetchRecords issues the configured query as a new fetch.
func (m *Model) FetchRecords() tea.Cmd {
	m.seq++
	seq := m.seq
	m.busy = "Loading…"
	session, soql := m.session, m.query

	slog.Debug("Fetching records", "seq", seq)
	return func() tea.Msg {
		records, err := session.Query(context.Background(), soql)
		return recordsFetchedMsg{seq: seq, records: records, err: err}
	}
}

// Login runs the authentication flow and refetches once it succeeds.
func (m *Model) Login() tea.Cmd {
	m.busy = "Logging in…"
	m.loginURL = ""
	m.loggingIn = true
	session := m.session
	return func() tea.Msg {
		return loginCompletedMsg{err: session.Authenticate(context.Background())}
	}
}

// Logout signs out. Fetches issued before this point are discarded.
func (m *Model) Logout() tea.Cmd {
	m.seq++
	m.busy = "Logging out…"
	session := m.session
	return func() tea.Msg {
		session.Logout(context.Background())
		return logoutCompletedMsg{}
	}
}

// HeaderAction returns the control for the current state
func (m *Model) HeaderAction() HeaderAction {
	if m.state.LoggedIn {
		return HeaderAction{Label: "Logout", Activate: m.Logout}
	}
	return HeaderAction{Label: "Login", Activate: m.Login}
}

// Rows projects the records to their display labels, in order
func (m *Model) Rows() []string {
	rows := make([]string, len(m.state.Records))
	for i, r := range m.state.Records {
		rows[i] = r.Name
	}
	return rows
}

// ShortHelp lists the screen's key bindings for a footer
func (m *Model) ShortHelp() []string {
	help := []string{
		"a " + m.HeaderAction().Label,
		"r Refresh",
		"↑↓ Scroll",
	}
	if m.standalone {
		help = append(help, "q Quit")
	}
	return help
}

// SetSize sets the area the screen renders into
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	// title line, blank line, status line
	m.viewport.Height = max(height-3, 1)
	m.syncViewport()
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Action):
			return m, m.HeaderAction().Activate()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.FetchRecords()
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.syncViewport()
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.state.Records)-1 {
				m.cursor++
				m.syncViewport()
			}
		case key.Matches(msg, m.keys.Quit):
			if m.standalone {
				return m, tea.Quit
			}
		}
		return m, nil

	case recordsFetchedMsg:
		if msg.seq != m.seq {
			slog.Debug("Discarding stale fetch", "seq", msg.seq, "latest", m.seq)
			return m, nil
		}
		m.busy = ""
		if msg.err != nil {
			slog.Warn("Query failed", "error", msg.err)
			m.setState(false, nil)
			return m, nil
		}
		slog.Info("Records fetched", "count", len(msg.records))
		m.setState(true, msg.records)
		return m, nil

	case LoginURLMsg:
		if m.loggingIn {
			m.loginURL = msg.URL
		}
		return m, nil

	case loginCompletedMsg:
		m.busy = ""
		m.loggingIn = false
		m.loginURL = ""
		if msg.err != nil {
			slog.Warn("Login failed", "error", msg.err)
			return m, nil
		}
		return m, m.FetchRecords()

	case logoutCompletedMsg:
		m.seq++
		m.busy = ""
		slog.Info("Logged out")
		m.setState(false, nil)
		return m, nil
	}

	return m, nil
}

func (m *Model) setState(loggedIn bool, records []client.Record) {
	if records == nil {
		records = []client.Record{}
	}
	m.state = State{LoggedIn: loggedIn, Records: records}
	if m.cursor >= len(records) {
		m.cursor = max(len(records)-1, 0)
	}
	m.syncViewport()
}

// syncViewport re-renders rows into the viewport and keeps the cursor visible
func (m *Model) syncViewport() {
	rows := m.Rows()
	lines := make([]string, len(rows))
	for i, row := range rows {
		if i == m.cursor {
			lines[i] = styles.SelectedRowStyle.Render("▸ " + row)
		} else {
			lines[i] = styles.RowStyle.Render("  " + row)
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))

	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if m.viewport.Height > 0 && m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
}

// View implements tea.Model
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderTitleBar())
	sb.WriteString("\n\n")

	switch {
	case !m.state.LoggedIn:
		sb.WriteString(styles.Subtitle.Render("Not logged in. Press a to log in."))
	case len(m.state.Records) == 0:
		sb.WriteString(styles.Subtitle.Render("No records."))
	default:
		sb.WriteString(m.viewport.View())
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())

	if m.standalone {
		sb.WriteString("\n")
		sb.WriteString(styles.Help.Render(strings.Join(m.ShortHelp(), "  ")))
	}
	return sb.String()
}

func (m *Model) renderTitleBar() string {
	title := styles.Title.UnsetMarginBottom().Render(icons.Contact.String() + " " + m.title)

	icon := icons.Login
	action := m.HeaderAction()
	if action.Label == "Logout" {
		icon = icons.Logout
	}
	button := styles.HeaderButton.Render(icon.String() + " " + action.Label)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(button)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + button
}

func (m *Model) renderStatus() string {
	if m.busy != "" {
		status := styles.LabelStyle.Render(m.busy)
		if m.loginURL != "" {
			status += "\n" + styles.LabelStyle.Render("If no browser opened, visit:") + "\n" + m.loginURL
		}
		return status
	}
	if !m.state.LoggedIn {
		return ""
	}
	return styles.LabelStyle.Render(fmt.Sprintf("%d records", len(m.state.Records)))
}
