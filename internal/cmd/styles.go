package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/run-bigpig/roundtable/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

const ruleWidth = 50

func printHeader(w io.Writer, title string) {
	rule := ruleStyle.Render(strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n", rule, titleStyle.Render(title), rule)
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf(format, args...)))
}

func printWarn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf(format, args...)))
}

func printErr(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errStyle.Render(fmt.Sprintf(format, args...)))
}

// statusLabel 会议状态的中文显示
func statusLabel(status models.MeetingStatus) string {
	switch status {
	case models.MeetingStatusCompleted:
		return "已完成"
	case models.MeetingStatusRunning:
		return "进行中"
	default:
		return "未完成"
	}
}

func personaLine(p models.Persona) string {
	return fmt.Sprintf("[%s] %s - %s", p.ID, p.Name, p.Description)
}

func meetingLine(m *models.Meeting) string {
	return fmt.Sprintf("[%s] %s (%s)", m.ID, m.Topic, statusLabel(m.Status))
}

// truncate 按字符截断，用于进度输出
func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
