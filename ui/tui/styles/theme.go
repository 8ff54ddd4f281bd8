package styles

import (
	"github.com/charmbracelet/lipgloss"

	"procwatch/internal/flagger"
)

var (
	Subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	Highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	Special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	BrandColor = lipgloss.Color("#f27b24")
	BaseColor  = lipgloss.Color("#444")

	TitleStyle = lipgloss.NewStyle().
			MarginLeft(1).
			MarginRight(2).
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(BrandColor)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("cyan")).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)

	CursorStyle = CellStyle.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666"))

	ButtonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Highlight).
			Padding(0, 1)

	DisabledButtonStyle = ButtonStyle.
				BorderForeground(BaseColor).
				Foreground(lipgloss.Color("#555"))

	StaleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	StatusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFF"))
)

// ColorForStatus styles a row status marker.
func ColorForStatus(status flagger.Status) lipgloss.Style {
	switch status {
	case flagger.StatusWarn:
		return StatusStyle.Foreground(lipgloss.Color("220")) // Gold
	case flagger.StatusCrit:
		return StatusStyle.Foreground(lipgloss.Color("196")) // Red
	}
	return StatusStyle.Foreground(lipgloss.Color("46")) // Green
}

// Marker is the one-character symbol for a status.
func Marker(status flagger.Status) string {
	switch status {
	case flagger.StatusWarn:
		return "!"
	case flagger.StatusCrit:
		return "X"
	}
	return "✓"
}
