package report

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultRefresh is how often the live dashboard reloads the ledger.
const DefaultRefresh = 30 * time.Second

// Loader builds a fresh dashboard.
type Loader func() (Dashboard, error)

type tickMsg time.Time

type loadedMsg struct {
	dashboard Dashboard
	err       error
}

// WatchModel is the bubbletea model behind `dashboard --watch`.
type WatchModel struct {
	load      Loader
	refresh   time.Duration
	dashboard Dashboard
	err       error
	loaded    bool
	width     int
}

// NewWatchModel creates a live dashboard that calls load every refresh.
func NewWatchModel(load Loader, refresh time.Duration) WatchModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return WatchModel{load: load, refresh: refresh}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m WatchModel) reload() tea.Cmd {
	return func() tea.Msg {
		d, err := m.load()
		return loadedMsg{dashboard: d, err: err}
	}
}

// Init loads the first dashboard and starts the refresh tick.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.reload(), m.tick())
}

// Update handles keys, resizes, ticks and load results.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.reload()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.reload(), m.tick())
	case loadedMsg:
		// keep showing the last good dashboard when a reload fails
		m.err = msg.err
		if msg.err == nil {
			m.dashboard = msg.dashboard
			m.loaded = true
		}
	}
	return m, nil
}

// View renders the current dashboard.
func (m WatchModel) View() string {
	if !m.loaded && m.err == nil {
		return "Loading..."
	}

	footer := fmt.Sprintf("Press 'q' to quit, 'r' to refresh • Updates every %s", m.refresh)
	if m.err != nil {
		footer = fmt.Sprintf("Reload failed: %v • %s", m.err, footer)
	}

	footerStyle := footStyle
	if m.width > 0 {
		footerStyle = footerStyle.Width(m.width)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		RenderDashboard(m.dashboard),
		"",
		footerStyle.Render(footer),
	)
}
