// Package ui renders orchestration events and markdown answers for the
// terminal.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// User message style
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Assistant message style
	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	ToolStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	ChartStyle = lipgloss.NewStyle().
			Foreground(highlightColor)
)

// FormatPairs formats alternating labels and values on one line, with the
// values in the accent color.
// Usage: FormatPairs("provider", "ollama", "model", "llama3.1")
func FormatPairs(parts ...string) string {
	valueStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i+1 < len(parts); i += 2 {
		result = append(result, DimStyle.Render(parts[i]+":")+" "+valueStyle.Render(parts[i+1]))
	}
	return strings.Join(result, "  ")
}
