// ABOUTME: Lipgloss styles shared by the app shell and the contact list
// ABOUTME: One palette built around the Salesforce brand blue

package styles

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary   = lipgloss.Color("#0176D3")
	Accent    = lipgloss.Color("#1B96FF")
	Secondary = lipgloss.Color("#2E844A")
	Warning   = lipgloss.Color("#DD7A01")
	Danger    = lipgloss.Color("#BA0517")
	Muted     = lipgloss.Color("#747474")
	Text      = lipgloss.Color("#F3F3F3")
)

// Text
var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)

	Subtitle = lipgloss.NewStyle().Foreground(Muted).MarginBottom(1)

	Help = lipgloss.NewStyle().Foreground(Muted).MarginTop(1)

	KeyStyle   = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	LabelStyle = lipgloss.NewStyle().Foreground(Muted)
	ValueStyle = lipgloss.NewStyle().Foreground(Text).Bold(true)

	StatusWarning  = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	StatusCritical = lipgloss.NewStyle().Foreground(Danger).Bold(true)
)

// Containers
var (
	// Panel frames inline prompts such as the paste-URL box
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	// Modal frames presented dialogs; double border sets it apart from panels
	Modal = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Accent).
		Padding(1, 3)
)

// List screen
var (
	HeaderButton = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Bold(true).
			Padding(0, 1)

	RowStyle         = lipgloss.NewStyle().Foreground(Text)
	SelectedRowStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
)
