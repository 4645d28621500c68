package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	subtle   lipgloss.Style
	errorBox lipgloss.Style
	banner   lipgloss.Style
	own      lipgloss.Style
	other    lipgloss.Style
	nick     lipgloss.Style
	system   lipgloss.Style
	typing   lipgloss.Style
	panel    lipgloss.Style
	help     lipgloss.Style
}

func defaultStyles() styles {
	purple := lipgloss.Color("#7c3aed")
	blue := lipgloss.Color("#2563eb")
	gray := lipgloss.Color("#6b7280")
	red := lipgloss.Color("#dc2626")

	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(purple),
		subtle:   lipgloss.NewStyle().Foreground(gray),
		errorBox: lipgloss.NewStyle().Foreground(red).Border(lipgloss.RoundedBorder()).BorderForeground(red).Padding(0, 1),
		banner:   lipgloss.NewStyle().Foreground(red).Bold(true),
		own:      lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(purple).Padding(0, 1),
		other:    lipgloss.NewStyle().Foreground(lipgloss.Color("#111827")).Background(lipgloss.Color("#e5e7eb")).Padding(0, 1),
		nick:     lipgloss.NewStyle().Bold(true).Foreground(blue),
		system:   lipgloss.NewStyle().Italic(true).Foreground(gray),
		typing:   lipgloss.NewStyle().Italic(true).Foreground(gray),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(purple).Padding(0, 1),
		help:     lipgloss.NewStyle().Foreground(gray),
	}
}
