// ABOUTME: Hands callbacks from other goroutines over to the Bubble Tea event loop
// ABOUTME: Shell state is only ever touched inside Update, never from a callback

package tui

import (
	"net/url"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
)

// Sender delivers a message to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Dispatcher turns callbacks into messages for the program's event loop.
type Dispatcher struct {
	sender Sender
}

// NewDispatcher creates a Dispatcher for sender
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// CurrentUserChanged matches the account listener signature.
func (d *Dispatcher) CurrentUserChanged(prev, next *account.Account) {
	d.sender.Send(CurrentUserChangedMsg{Prev: prev, Next: next})
}

// OpenURL forwards a URL opened by the environment.
func (d *Dispatcher) OpenURL(u *url.URL) {
	d.sender.Send(OpenURLMsg{URL: u})
}

// AuthURL forwards the login page URL.
func (d *Dispatcher) AuthURL(u string) {
	d.sender.Send(AuthURLMsg{URL: u})
}
