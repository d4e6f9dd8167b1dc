package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chainblock/pkg/session"
	"chainblock/pkg/ui"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	left := (m.width - 4) * 3 / 5
	right := m.width - 4 - left

	main := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderSessionsPanel(left),
		"  ",
		lipgloss.JoinVertical(lipgloss.Left, m.renderStatsPanel(right), m.renderLogsPanel(right)),
	)

	sections := []string{headerStyle.Render("chainblock"), main}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("↑/↓ select • s stop • r rewind • ? help • q quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderStatsPanel(width int) string {
	active, waiting, finished := m.Counts()
	rows := []string{
		m.stat("Uptime:", ui.FormatDuration(m.now().Sub(m.startedAt))),
		m.stat("Sessions:", fmt.Sprint(len(m.sessions))),
		m.stat("Active:", fmt.Sprint(active)),
		m.stat("Waiting:", fmt.Sprint(waiting)),
		m.stat("Finished:", fmt.Sprint(finished)),
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" STATS "), strings.Join(rows, "\n")),
	)
}

func (m Model) stat(label, value string) string {
	return statsLabelStyle.Render(label) + " " + statsValueStyle.Render(value)
}

func (m Model) renderSessionsPanel(width int) string {
	title := titleStyle.Render(" SESSIONS ")
	if len(m.order) == 0 {
		empty := itemStyle.Render("No sessions yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, empty))
	}

	var rows []string
	for i, id := range m.order {
		rows = append(rows, m.renderSession(m.sessions[id], i == m.selected))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m Model) renderSession(item *SessionItem, selected bool) string {
	info := item.Info

	cursor, nameStyle := "  ", itemStyle
	if selected {
		cursor, nameStyle = "> ", selectedStyle
	}
	icon := " "
	if info.Status.Active() {
		icon = m.spinner.View()
	}

	head := fmt.Sprintf("%s%s %s %s",
		cursor,
		icon,
		nameStyle.Render(info.Request.String()),
		statusStyle(info.Status).Render(string(info.Status)),
	)
	bar := "    " + m.bar.ViewAs(fraction(info.Progress)) + " " + ui.FormatTotal(info.Progress)

	lines := []string{head, bar, countsStyle.Render(ui.FormatCounts(info.Progress))}
	if detail := m.detail(item); detail != "" {
		lines = append(lines, countsStyle.Render(detail))
	}
	return strings.Join(lines, "\n")
}

// detail is the status-specific extra line of a session
func (m Model) detail(item *SessionItem) string {
	info := item.Info
	switch info.Status {
	case session.StatusRateLimited:
		if info.Limit != nil {
			return "rate limit resets in " + ui.FormatDuration(info.Limit.Reset.Sub(m.now()))
		}
		return "rate limited"
	case session.StatusAwaitingUntilRecur:
		return "next run in " + ui.FormatDuration(item.NextRun.Sub(m.now()))
	case session.StatusStopped:
		return "stopped: " + string(item.Reason)
	case session.StatusError:
		if item.Err != nil {
			return "error: " + item.Err.Error()
		}
	}
	return ""
}

func (m Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, l := range m.logMessages[start:] {
		msg := l.Message
		if limit := width - 22; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(l.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(l.Color).Bold(true).Render(fmt.Sprintf("%-7s", l.Level)),
			logMessageStyle.Render(msg),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = itemStyle.Render("No events yet...")
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m Model) renderHelp() string {
	help := `  ↑/k ↓/j   select a session
  s         stop the selected session
  r         rewind the selected session and queue it again
  ctrl+l    clear the log
  ?         toggle this help
  q         quit (running sessions are stopped)`
	return panelStyle.Width(m.width - 2).Render(help)
}
