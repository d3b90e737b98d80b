package cmd

import "github.com/charmbracelet/lipgloss"

// styles used by the human-readable command output
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")) // Purple
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // Gray
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")) // Cyan
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")) // Green
	dangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)
