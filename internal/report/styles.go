package report

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#3B82F6")
	muted   = lipgloss.Color("#94A3B8")
	surface = lipgloss.Color("#334155")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(primary).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(muted)
	valueStyle = lipgloss.NewStyle().Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(surface).
			Padding(0, 1)

	barStyle   = lipgloss.NewStyle().Foreground(primary)
	trackStyle = lipgloss.NewStyle().Foreground(surface)
	emptyStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)
	footStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)
