package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Report styling. Output stays plain when stdout is not a terminal.
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	critStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// termWidth returns the terminal width, or a conservative default when
// stdout is not a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func printTitle(s string) {
	fmt.Println(titleStyle.Render(s))
}

func printHeader(s string) {
	fmt.Println(headerStyle.Render(s))
}

func printField(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

// bar renders a proportional bar scaled to the available width.
func bar(fraction float64, width int) string {
	if width < 4 {
		width = 4
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

// severityRender colors a severity label.
func severityRender(severity string) string {
	switch severity {
	case "critical":
		return critStyle.Render(severity)
	case "high", "medium":
		return warnStyle.Render(severity)
	default:
		return valueStyle.Render(severity)
	}
}
