package views

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by the views.
var (
	colorPrimary   = lipgloss.Color("#FF6B6B")
	colorSecondary = lipgloss.Color("#4ecdc4")
	colorAccent    = lipgloss.Color("#ffe66d")
	colorMuted     = lipgloss.Color("#666666")
	colorSuccess   = lipgloss.Color("#a8e6cf")
	colorText      = lipgloss.Color("#f1faee")
	colorLabel     = lipgloss.Color("#a8dadc")
	colorBgAlt     = lipgloss.Color("#2d3436")
	colorBorder    = lipgloss.Color("#3d5a80")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorLabel).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Background(colorBgAlt)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 2)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Background(colorBgAlt).
			Padding(0, 2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2)
)

func divider(width int) string {
	return lipgloss.NewStyle().Foreground(colorBorder).Render(strings.Repeat("─", max(min(width-4, 60), 1)))
}

func tabs(labels []string, active int) string {
	out := make([]string, len(labels))
	for i, l := range labels {
		if i == active {
			out[i] = tabActiveStyle.Render(l)
		} else {
			out[i] = tabStyle.Render(l)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}
