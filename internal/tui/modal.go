// ABOUTME: Account details modal and the pasted-URL prompt
// ABOUTME: Both overlay the current root view until dismissed

package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/account"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/icons"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/styles"
)

type accountModal struct {
	account    *account.Account
	dismissing bool
}

func newAccountModal(a *account.Account) *accountModal {
	return &accountModal{account: a}
}

func (m *accountModal) view() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(icons.User.String() + " Account"))
	sb.WriteString("\n")

	if m.account == nil {
		sb.WriteString(styles.Subtitle.Render("Not logged in"))
	} else {
		a := m.account
		rows := [][2]string{
			{"User", a.Label()},
			{"Name", a.DisplayName},
			{"User ID", a.UserID},
			{"Org ID", a.OrgID},
			{"Instance", a.InstanceURL},
			{"Login host", a.LoginURL},
		}
		if !a.CreatedAt.IsZero() {
			rows = append(rows, [2]string{"Since", a.CreatedAt.Format("2006-01-02 15:04")})
		}
		for _, r := range rows {
			if r[1] == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s %s\n", styles.LabelStyle.Render(fmt.Sprintf("%-11s", r[0])), styles.ValueStyle.Render(r[1])))
		}
	}

	if m.dismissing {
		sb.WriteString(styles.Help.Render("Closing…"))
	} else {
		sb.WriteString(styles.Help.Render("esc close"))
	}
	return styles.Modal.Render(sb.String())
}

// overlay centers box in a width x height area
func overlay(box string, width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

type urlPrompt struct {
	input textinput.Model
	err   string
}

func newURLPrompt() *urlPrompt {
	ti := textinput.New()
	ti.Placeholder = "http://localhost:1717/OauthRedirect?code=…"
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Focus()
	return &urlPrompt{input: ti}
}

// update handles a key. done is true when the prompt should close; a
// submitted URL comes back as a command producing OpenURLMsg.
func (p *urlPrompt) update(msg tea.KeyMsg) (cmd tea.Cmd, done bool) {
	switch msg.String() {
	case "esc":
		return nil, true
	case "enter":
		raw := strings.TrimSpace(p.input.Value())
		u, err := url.Parse(raw)
		if raw == "" || err != nil || u.RawQuery == "" {
			p.err = "Paste the full URL your browser was redirected to"
			return nil, false
		}
		return func() tea.Msg { return OpenURLMsg{URL: u} }, true
	}

	p.err = ""
	var c tea.Cmd
	p.input, c = p.input.Update(msg)
	return c, false
}

func (p *urlPrompt) view() string {
	var sb strings.Builder
	sb.WriteString(styles.KeyStyle.Render(icons.Link.String() + " Paste redirect URL"))
	sb.WriteString("\n")
	sb.WriteString(p.input.View())
	if p.err != "" {
		sb.WriteString("\n")
		sb.WriteString(styles.StatusWarning.Render(p.err))
	}
	return styles.Panel.Render(sb.String())
}
