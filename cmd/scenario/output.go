package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// titleStyle for bold headers
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle for success indicators
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// errorStyle for error indicators
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for the run summary
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// formatHeader renders the run header with scenario info.
func formatHeader(w io.Writer, name, scriptPath string, startTime float64) {
	content := fmt.Sprintf("%s %s\n%s %s\n%s %g days",
		dimStyle.Render("Scenario:"), titleStyle.Render(name),
		dimStyle.Render("Script:"), scriptPath,
		dimStyle.Render("Start:"), startTime,
	)
	fmt.Fprintln(w, boxStyle.Render(content))
}

type summary struct {
	processed int
	simTime   float64
	elapsed   time.Duration
	err       error
}

// formatSummary renders the run summary box.
func formatSummary(w io.Writer, s summary) {
	status := successStyle.Render("OK")
	if s.err != nil {
		status = errorStyle.Render("ERROR")
	}

	line := fmt.Sprintf("%s %d  %s %g days  %s %.1fs  %s",
		dimStyle.Render("Events:"), s.processed,
		dimStyle.Render("Sim time:"), s.simTime,
		dimStyle.Render("Elapsed:"), s.elapsed.Seconds(),
		status,
	)

	content := titleStyle.Render("Run Complete") + "\n" + line
	if s.err != nil {
		content += "\n" + errorStyle.Render(s.err.Error())
	}
	fmt.Fprintln(w, boxStyle.Render(content))
}
