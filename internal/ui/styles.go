package ui

import "github.com/charmbracelet/lipgloss"

// Palette (ANSI 256). One accent keeps the TUI readable on light and dark
// terminals.
const (
	ColorAccent   = "39"  // progress, active stage
	ColorAccentLo = "31"  // finished stages
	ColorText     = "252" // values
	ColorMuted    = "245" // labels
	ColorFaint    = "239" // borders, pending stages
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the lipgloss styles used by the TUI and document listings.
type Styles struct {
	Header  lipgloss.Style
	Active  lipgloss.Style
	Done    lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Header:  fg(ColorAccent).Bold(true),
		Active:  fg(ColorAccent).Bold(true),
		Done:    fg(ColorAccentLo),
		Dim:     fg(ColorFaint),
		Label:   fg(ColorMuted),
		Value:   fg(ColorText),
		Warning: fg(ColorYellow),
		Error:   fg(ColorRed),
		Border:  fg(ColorFaint),
	}
}

// NoColorStyles returns styles that render text unchanged.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Active: plain, Done: plain, Dim: plain, Label: plain,
		Value: plain, Warning: plain, Error: plain, Border: plain,
	}
}

// GetStyles picks styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor || DetectNoColor() {
		return NoColorStyles()
	}
	return DefaultStyles()
}
