package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/walkai/stride/internal/query"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	s := m.styles

	parts := []string{s.Logo.Render("stride")}

	if user := m.guard.user; user != nil {
		parts = append(parts, s.MutedText.Render(user.Email))
	}

	switch m.jobs.res.Status {
	case query.StatusSuccess:
		parts = append(parts, s.SuccessText.Render("● ON"))
	case query.StatusError:
		parts = append(parts, s.DangerText.Render("● OFF"))
	default:
		parts = append(parts, s.WarningText.Render("● ..."))
	}

	if m.jobs.res.HasData {
		parts = append(parts,
			s.MutedText.Render("Jobs:")+" "+s.Text.Render(fmt.Sprintf("%d", len(m.jobs.rows))))
		if running := m.runningCount(); running > 0 {
			parts = append(parts,
				s.MutedText.Render("Running:")+" "+s.InfoText.Render(fmt.Sprintf("%d", running)))
		}
	}

	if !m.jobs.res.FetchedAt.IsZero() {
		parts = append(parts, s.MutedText.Render(m.jobs.res.FetchedAt.Format("15:04:05")))
	}

	if m.jobs.res.Status == query.StatusError && m.jobs.res.Err != nil {
		parts = append(parts,
			s.DangerText.Render("ERROR")+" "+s.DangerText.Render(truncate(errorLine(m.jobs.res.Err), 60)))
	}

	return s.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// runningCount counts jobs whose latest run is still active.
func (m Model) runningCount() int {
	count := 0
	for _, job := range m.jobs.rows {
		switch runStatus(job) {
		case "running", "starting", "pending":
			count++
		}
	}
	return count
}

// renderCommandBar renders the key hints bar.
func (m Model) renderCommandBar() string {
	s := m.styles

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.jobs.showRegistry:
		commands = []cmd{
			{"enter", "Use image"},
			{"esc", "Back"},
		}
	case m.jobs.showForm:
		commands = []cmd{
			{"tab", "Next field"},
			{"space", "Toggle secret"},
			{"ctrl+b", "Browse images"},
			{"enter", "Submit"},
			{"esc", "Cancel"},
		}
	case m.users.inviteOpen:
		commands = []cmd{
			{"enter", "Send"},
			{"esc", "Cancel"},
		}
	case m.tab == tabUsers:
		commands = []cmd{
			{"n", "Invite"},
			{"q", "Jobs"},
			{"L", "Sign out"},
			{"?", "Help"},
		}
	default:
		commands = []cmd{
			{"n", "New job"},
			{"r", "Refresh"},
			{"j/k", "Navigate"},
			{"u", "Users"},
			{"L", "Sign out"},
			{"?", "Help"},
		}
	}

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments, s.AccentText.Render(c.key)+":"+s.MutedText.Render(c.desc))
	}
	segments = append(segments, s.AccentText.Render("T")+":"+s.FaintText.Render(m.theme.Name))

	return s.Header.Width(m.width).Render(strings.Join(segments, "  "))
}

// renderHelp renders the key binding overlay. Any key closes it.
func (m Model) renderHelp() string {
	s := m.styles

	bindings := []struct{ key, desc string }{
		{"j/k", "Move selection"},
		{"n", "New job / invite user"},
		{"r", "Refresh jobs now"},
		{"u", "Users page"},
		{"q", "Jobs page"},
		{"tab", "Switch page"},
		{"T", "Cycle theme"},
		{"L", "Sign out"},
		{"e", "Exit"},
		{"ctrl+c", "Exit"},
	}

	var b strings.Builder
	b.WriteString("\n  " + s.AccentText.Render("Keys") + "\n\n")
	for _, bind := range bindings {
		b.WriteString("  " + s.AccentText.Render(padRight(bind.key, 8)) + s.MutedText.Render(bind.desc) + "\n")
	}
	b.WriteString("\n  " + s.FaintText.Render("press any key to close") + "\n")
	return b.String()
}

// formatRelative renders a timestamp as time-ago text for table rows.
func formatRelative(now time.Time, ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	diff := now.Sub(ts)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return ts.In(time.Local).Format("Jan 02")
	}
}
