package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/shake_monitor/internal/render"
)

var (
	ColorDim     = lipgloss.Color("#666666")
	ColorText    = lipgloss.Color("#DDDDDD")
	ColorBorder  = lipgloss.Color("#444444")
	ColorWarning = lipgloss.Color("#FFAA00")
	ColorError   = lipgloss.Color("#FF3300")
)

var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true).
			Padding(0, 1)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorDim)

	StyleNotice = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)
)

// widget styles a widget with a scene color. Unset keeps the base style.
func widget(base lipgloss.Style, c render.Color) lipgloss.Style {
	if c == render.Unset {
		return base
	}
	return base.Foreground(lipgloss.Color(c.Hex()))
}

// card styles the panel around the widgets. A set card color replaces
// the rounded background, like the alert card.
func card(c render.Color) lipgloss.Style {
	if c == render.Unset {
		return StyleCard
	}
	return StyleCard.BorderForeground(lipgloss.Color(c.Hex()))
}
