package tui

import (
	"github.com/charmbracelet/lipgloss"

	"chainblock/pkg/session"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	neonRed     = lipgloss.Color("#FF0033")
	darkBg      = lipgloss.Color("#0A0E27")
	darkBg2     = lipgloss.Color("#1A1E37")
	dimWhite    = lipgloss.Color("#B0B0B0")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	headerStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(darkBg2).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	selectedStyle = lipgloss.NewStyle().
			Foreground(neonGreen).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	countsStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Faint(true).
			PaddingLeft(4)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 0, 0, 2)
)

// statusStyle colors a session status
func statusStyle(s session.Status) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case session.StatusRunning:
		return base.Foreground(neonGreen)
	case session.StatusRateLimited:
		return base.Foreground(neonOrange)
	case session.StatusAwaitingUntilRecur:
		return base.Foreground(neonMagenta)
	case session.StatusCompleted:
		return base.Foreground(neonCyan)
	case session.StatusError:
		return base.Foreground(neonRed)
	case session.StatusStopped:
		return base.Foreground(neonYellow)
	default:
		return base.Foreground(dimWhite)
	}
}
