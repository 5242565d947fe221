// Package ui is the terminal presentation layer. It renders what the engine
// exposes and sends actions back; no game logic lives here.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"habitsync/internal/habitica"
)

// Status colors follow the service's task palette.
var (
	colorGrey    = lipgloss.Color("245")
	colorDue     = lipgloss.Color("178")
	colorDone    = lipgloss.Color("71")
	colorRed     = lipgloss.Color("160")
	colorSuccess = lipgloss.Color("77")
	colorAccent  = lipgloss.Color("99")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorGrey)

	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(colorGrey)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(colorAccent).Underline(true)

	selectedRowStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236"))

	statusLineStyle = lipgloss.NewStyle().Faint(true)
	errorStyle      = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	detailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorGrey).
			Padding(0, 1)
)

var statusStyles = map[habitica.Status]lipgloss.Style{
	habitica.StatusHabit:   lipgloss.NewStyle().Foreground(colorAccent),
	habitica.StatusReward:  lipgloss.NewStyle().Foreground(colorDue),
	habitica.StatusGrey:    lipgloss.NewStyle().Foreground(colorGrey),
	habitica.StatusDue:     lipgloss.NewStyle().Foreground(colorDue),
	habitica.StatusDone:    lipgloss.NewStyle().Foreground(colorDone),
	habitica.StatusSuccess: lipgloss.NewStyle().Foreground(colorSuccess),
	habitica.StatusRed:     lipgloss.NewStyle().Foreground(colorRed),
	habitica.StatusUnknown: lipgloss.NewStyle().Foreground(colorGrey).Strikethrough(true),
}

func styleForStatus(s habitica.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return statusStyles[habitica.StatusGrey]
}
