package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B6B6B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)
)

const rule = "──────────────────────────────────────────────────"

// printHeader writes a section title followed by a rule.
func printHeader(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf(format, args...)))
	_, _ = fmt.Fprintln(w, mutedStyle.Render(rule))
}

// formatBytes renders a size like "1.2 MB".
func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// formatTimeSince formats a duration since a time in a human-readable way.
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) > 7*24*time.Hour {
		return t.Format("2006-01-02")
	}
	return humanize.Time(t)
}
