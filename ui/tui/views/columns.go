package views

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"

	"procwatch/internal/engine"
	"procwatch/ui/tui/state"
	"procwatch/ui/tui/styles"
)

// ColumnsView is the column visibility menu.
type ColumnsView struct{}

func (v ColumnsView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(max(props.Width, 40)).Render("PROCWATCH // COLUMNS")

	hidden := make(map[engine.ColumnKey]bool, len(s.View.HiddenColumns))
	for _, k := range s.View.HiddenColumns {
		hidden[k] = true
	}

	var items []string
	for i, c := range engine.Columns() {
		// Items near the animated cursor pop out.
		dist := math.Abs(float64(i) - props.AnimCursor)
		strength := 0.0
		if dist < 1.0 {
			strength = 1.0 - dist
		}

		borderColor := styles.BaseColor
		if strength > 0.1 || i == s.ColumnCursor {
			borderColor = styles.BrandColor
		}

		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1).
			MarginLeft(2 + int(strength*2)).
			Width(36)
		if i == s.ColumnCursor {
			box = box.Bold(true).Foreground(lipgloss.Color("#FFF"))
		} else {
			box = box.Foreground(lipgloss.Color("#AAA"))
		}

		check := "[x]"
		if hidden[c.Key] {
			check = "[ ]"
		}
		text := fmt.Sprintf("%s %-20s %s", check, c.Title, c.Key)
		items = append(items, mark(props, ColumnZone(i), box.Render(text)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).PaddingLeft(2).Foreground(styles.BrandColor).Render("VISIBLE COLUMNS"),
		CopyStyle.Render("Hidden columns still sort and filter."),
		lipgloss.JoinVertical(lipgloss.Left, items...),
	)

	controls := styles.DimStyle.PaddingLeft(2).Render("\n[↑/↓] Navigate • [Enter/Space] Toggle • [Esc] Back")

	return scan(props, lipgloss.JoinVertical(lipgloss.Left, header, MenuBoxStyle.Render(content), controls))
}

var (
	MenuHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(styles.BrandColor).
			Align(lipgloss.Left).
			Padding(1, 2)

	MenuBoxStyle = lipgloss.NewStyle().
			Padding(1, 0).
			MarginTop(1)

	CopyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888")).
			Italic(true).
			MarginBottom(1).
			PaddingLeft(2)
)
