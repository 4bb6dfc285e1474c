// ABOUTME: Messages exchanged between the app shell, its commands and outside callbacks
// ABOUTME: Exported messages may be sent into the program from other goroutines via Dispatcher

package tui

import (
	"net/url"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
)

// CurrentUserChangedMsg reports a login, logout or user switch.
type CurrentUserChangedMsg struct {
	Prev *account.Account
	Next *account.Account
}

// OpenURLMsg carries a URL handed to the app, such as a pasted login redirect.
type OpenURLMsg struct {
	URL *url.URL
}

// AuthURLMsg carries the login page URL so it can be shown when no browser opened.
type AuthURLMsg struct {
	URL string
}

// DismissedMsg is sent when a presented modal has finished closing.
type DismissedMsg struct{}

// loginCheckedMsg is the answer to login check seq
type loginCheckedMsg struct {
	seq      int
	required bool
}

// loginHostChosenMsg is sent when the host picker completes
type loginHostChosenMsg struct {
	host string
}

// loginFinishedMsg is sent when LoginIfRequired returns
type loginFinishedMsg struct {
	err error
}

// pushRegisteredMsg is sent when push registration completes
type pushRegisteredMsg struct {
	err error
}

// mainMsg tags a message produced by a main root with the generation that
// issued it, so results for a replaced root are dropped.
type mainMsg struct {
	gen int
	msg tea.Msg
}

// tagGeneration wraps cmd so its message is delivered as a mainMsg for gen.
func tagGeneration(gen int, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		switch msg := cmd().(type) {
		case nil:
			return nil
		case tea.BatchMsg:
			for i := range msg {
				msg[i] = tagGeneration(gen, msg[i])
			}
			return msg
		case tea.QuitMsg:
			return msg
		default:
			return mainMsg{gen: gen, msg: msg}
		}
	}
}
