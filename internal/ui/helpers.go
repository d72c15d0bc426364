package ui

import (
	"strings"
	"time"
)

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// padRight pads a string with spaces to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDateTime renders a timestamp in local time, or "-" when absent.
func formatDateTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.In(time.Local).Format("2006-01-02 15:04:05")
}

// errorLine flattens an error into a single display line.
func errorLine(err error) string {
	if err == nil {
		return ""
	}
	line := strings.ReplaceAll(err.Error(), "\n", " · ")
	return strings.TrimSpace(line)
}
