package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/walkai/stride/internal/query"
	"github.com/walkai/stride/internal/walkai"
)

// jobsState holds the jobs page: the polled list subscription, the table
// built from it, and the submission/registry overlays.
type jobsState struct {
	sub *query.Subscription
	res query.Result

	table table.Model
	rows  []walkai.Job

	showForm bool
	form     formState

	showRegistry bool
	registry     registryState

	banner      string
	bannerUntil time.Time
}

func (m *Model) initJobsTable() {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Image", Width: 44},
		{Title: "GPU", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Submitted", Width: 16},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	t.SetStyles(m.tableStyles())
	m.jobs.table = t
	m.layoutJobsTable()
	m.refreshJobsTable()
}

func (m *Model) tableStyles() table.Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(m.theme.Text))
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color(m.theme.SelectionText)).
		Background(lipgloss.Color(m.theme.SelectionBg)).
		Bold(false)
	ts.Cell = ts.Cell.Foreground(lipgloss.Color(m.theme.Text))
	return ts
}

func (m *Model) restyleJobsTable() {
	m.jobs.table.SetStyles(m.tableStyles())
}

func (m *Model) layoutJobsTable() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// Two header lines, one banner line, detail pane below the table.
	height := m.height - 3 - detailPaneHeight
	if height < 4 {
		height = 4
	}
	m.jobs.table.SetHeight(height)
	m.jobs.table.SetWidth(m.width)
}

const detailPaneHeight = 7

// refreshJobsTable rebuilds the table rows from the latest list snapshot,
// keeping the selection pinned to the same job ID across refetches.
func (m *Model) refreshJobsTable() {
	jobs, _ := m.jobs.res.Data.([]walkai.Job)
	rows := append([]walkai.Job(nil), jobs...)
	sort.SliceStable(rows, func(i, j int) bool {
		ti := rows[i].ParsedSubmittedAt()
		tj := rows[j].ParsedSubmittedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return rows[i].ID > rows[j].ID
	})

	var selectedID int64
	if cur := m.selectedJob(); cur != nil {
		selectedID = cur.ID
	}

	now := time.Now()
	tableRows := make([]table.Row, 0, len(rows))
	for _, job := range rows {
		tableRows = append(tableRows, table.Row{
			fmt.Sprintf("#%d", job.ID),
			truncate(job.Image, 44),
			job.GPUProfile,
			runStatus(job),
			formatRelative(now, job.ParsedSubmittedAt()),
		})
	}

	m.jobs.rows = rows
	m.jobs.table.SetRows(tableRows)

	if selectedID != 0 {
		for i, job := range rows {
			if job.ID == selectedID {
				m.jobs.table.SetCursor(i)
				return
			}
		}
	}
	if m.jobs.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.jobs.table.SetCursor(len(rows) - 1)
	}
}

// selectedJob returns the job under the table cursor, if any.
func (m *Model) selectedJob() *walkai.Job {
	idx := m.jobs.table.Cursor()
	if idx < 0 || idx >= len(m.jobs.rows) {
		return nil
	}
	return &m.jobs.rows[idx]
}

// runStatus reports the latest run's status, or "queued" before any run.
func runStatus(job walkai.Job) string {
	if job.LatestRun == nil {
		return "queued"
	}
	return strings.ToLower(strings.TrimSpace(job.LatestRun.Status))
}

func (m Model) handleJobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.jobs.table, cmd = m.jobs.table.Update(msg)
	return m, cmd
}

func (m Model) renderJobs() string {
	s := m.styles
	var b strings.Builder

	switch {
	case m.jobs.banner != "":
		b.WriteString(" " + s.SuccessText.Render(m.jobs.banner) + "\n")
	case m.jobs.res.Status == query.StatusError && m.jobs.res.HasData:
		// Keep showing the cached list under a refresh failure.
		b.WriteString(" " + s.WarningText.Render("Refresh failed: "+errorLine(m.jobs.res.Err)+" — showing cached data") + "\n")
	default:
		b.WriteString("\n")
	}

	if !m.jobs.res.HasData {
		switch m.jobs.res.Status {
		case query.StatusError:
			b.WriteString("\n " + s.DangerText.Render("Could not load jobs: "+errorLine(m.jobs.res.Err)) + "\n")
			b.WriteString(" " + s.MutedText.Render("r: retry") + "\n")
		default:
			b.WriteString("\n " + s.MutedText.Render("Loading jobs...") + "\n")
		}
		return b.String()
	}

	if len(m.jobs.rows) == 0 {
		b.WriteString("\n " + s.MutedText.Render("No jobs yet. Press n to submit one.") + "\n")
		return b.String()
	}

	b.WriteString(m.jobs.table.View())
	b.WriteString("\n")
	b.WriteString(m.renderJobDetail())
	return b.String()
}

// renderJobDetail shows the latest run of the selected job.
func (m Model) renderJobDetail() string {
	s := m.styles
	job := m.selectedJob()
	if job == nil {
		return ""
	}

	var b strings.Builder
	label := func(text string) string { return s.MutedText.Render(padRight(text, 11)) }

	b.WriteString(" " + s.AccentText.Render(fmt.Sprintf("Job #%d", job.ID)) + "  " + s.StatusStyle(runStatus(*job)).Render(strings.ToUpper(runStatus(*job))) + "\n")
	b.WriteString(" " + label("Image") + s.Text.Render(job.Image) + "\n")
	b.WriteString(" " + label("GPU") + s.Text.Render(job.GPUProfile) + "\n")
	b.WriteString(" " + label("Submitted") + s.Text.Render(formatDateTime(job.ParsedSubmittedAt())) + "\n")

	if run := job.LatestRun; run != nil {
		names := run.JobName
		if run.PodName != "" {
			names += " / " + run.PodName
		}
		b.WriteString(" " + label("Kubernetes") + s.Text.Render(names) + "\n")
		window := formatDateTime(run.ParsedStartedAt())
		if !run.ParsedFinishedAt().IsZero() {
			window += " → " + formatDateTime(run.ParsedFinishedAt())
		}
		b.WriteString(" " + label("Run") + s.Text.Render(window) + "\n")
	} else {
		b.WriteString(" " + label("Run") + s.MutedText.Render("not started") + "\n")
	}
	return b.String()
}
