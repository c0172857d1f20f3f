package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/workforcehq/foreman/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true).
			PaddingBottom(1)

	statusStyles = map[models.ExecutionStatus]lipgloss.Style{
		models.ExecutionRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")).Bold(true),
		models.ExecutionPaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857")).Bold(true),
		models.ExecutionCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")).Bold(true),
		models.ExecutionFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		models.ExecutionCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}

	taskGlyphs = map[models.TaskStatus]string{
		models.TaskStatusPending:   "·",
		models.TaskStatusReady:     "○",
		models.TaskStatusRunning:   "◐",
		models.TaskStatusCompleted: "✓",
		models.TaskStatusFailed:    "✗",
		models.TaskStatusSkipped:   "–",
	}

	taskStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskStatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		models.TaskStatusReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		models.TaskStatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1")),
		models.TaskStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1")),
		models.TaskStatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		models.TaskStatusSkipped:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true),
	}

	logStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			PaddingTop(1)
)

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("foreman · execution %s", a.executionID)))
	b.WriteString("\n")

	statusStyle, ok := statusStyles[a.status]
	if !ok {
		statusStyle = lipgloss.NewStyle()
	}
	statusLine := statusStyle.Render(strings.ToUpper(string(a.status)))
	if a.reason != "" {
		statusLine += logStyle.Render("  " + a.reason)
	}
	b.WriteString(statusLine)
	b.WriteString("\n\n")

	b.WriteString("  " + a.progress.ViewAs(a.percent))
	b.WriteString("\n\n")

	for _, row := range a.tasks {
		glyph := taskGlyphs[row.status]
		style := taskStyles[row.status]
		line := fmt.Sprintf("  %s %s", glyph, row.title)
		if row.status == models.TaskStatusRunning && row.agent != "" {
			line += logStyle.Render("  [" + row.agent + "]")
		}
		if row.err != "" {
			line += errStyle.Render("  " + row.err)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(a.viewLogs())

	if a.ctlErr != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("  " + a.ctlErr))
	}

	help := "p pause · r resume · c cancel · q quit"
	if a.done {
		help = "q quit"
	}
	b.WriteString(footerStyle.Render("\n  " + help))
	b.WriteString("\n")

	return b.String()
}

// viewLogs renders the tail of the activity log that fits the terminal.
func (a *App) viewLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	// Leave room for header, progress, task list, and footer.
	avail := a.height - len(a.tasks) - 10
	if avail < 3 {
		avail = 3
	}
	start := len(a.logs) - avail
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, entry := range a.logs[start:] {
		line := fmt.Sprintf("  %s %s", entry.Timestamp.Format("15:04:05"), entry.Message)
		b.WriteString(logStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
