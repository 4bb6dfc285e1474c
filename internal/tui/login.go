// ABOUTME: Login view shown while the shell awaits login
// ABOUTME: Lets the user pick the login host, then shows progress or the failure

package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/icons"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/tui/styles"
)

type loginState int

const (
	loginPicking loginState = iota
	loginWaiting
	loginFailed
)

type loginView struct {
	state   loginState
	form    *huh.Form
	host    string
	authURL string
	err     error
	cancel  context.CancelFunc
}

// hostOptions lists production, sandbox, the current host and recently
// used custom hosts, without duplicates.
func hostOptions(currentHost string, recent []string) []huh.Option[string] {
	options := []huh.Option[string]{
		huh.NewOption("Production", config.DefaultLoginURL),
		huh.NewOption("Sandbox", config.SandboxLoginURL),
	}
	seen := map[string]bool{config.DefaultLoginURL: true, config.SandboxLoginURL: true}
	for _, host := range append([]string{currentHost}, recent...) {
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		options = append(options, huh.NewOption("Custom ("+strings.TrimPrefix(host, "https://")+")", host))
	}
	return options
}

func newLoginView(currentHost string, recent []string) *loginView {
	l := &loginView{state: loginPicking, host: currentHost}
	options := hostOptions(currentHost, recent)

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log in to").
				Options(options...).
				Value(&l.host),
		),
	).WithTheme(huh.ThemeBase()).WithShowHelp(false)

	return l
}

func (l *loginView) init() tea.Cmd {
	return l.form.Init()
}

// update forwards msg to the host picker and reports the choice once made.
func (l *loginView) update(msg tea.Msg) tea.Cmd {
	if l.state != loginPicking {
		return nil
	}

	model, cmd := l.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		l.form = f
	}

	if l.form.State == huh.StateCompleted {
		l.state = loginWaiting
		host := l.host
		return tea.Batch(cmd, func() tea.Msg { return loginHostChosenMsg{host: host} })
	}
	return cmd
}

func (l *loginView) fail(err error) {
	l.state = loginFailed
	l.err = err
	l.cancel = nil
}

func (l *loginView) abort() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *loginView) view() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(icons.Login.String() + " Log in"))
	sb.WriteString("\n")

	switch l.state {
	case loginPicking:
		sb.WriteString(l.form.View())
	case loginWaiting:
		sb.WriteString(styles.Subtitle.Render("Waiting for login at " + l.host + " to complete in your browser…"))
		if l.authURL != "" {
			sb.WriteString("\n")
			sb.WriteString(styles.LabelStyle.Render("If no browser opened, visit:"))
			sb.WriteString("\n")
			sb.WriteString(l.authURL)
			sb.WriteString("\n\n")
			sb.WriteString(styles.LabelStyle.Render("Then press u to paste the URL you were redirected to."))
		}
	case loginFailed:
		sb.WriteString(styles.StatusCritical.Render(icons.Critical.String() + " Login failed"))
		if l.err != nil {
			sb.WriteString("\n")
			sb.WriteString(styles.LabelStyle.Render(l.err.Error()))
		}
		sb.WriteString("\n\n")
		sb.WriteString(styles.Help.Render("Press l to try again."))
	}
	return sb.String()
}
