package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"procwatch/internal/engine"
	"procwatch/internal/output"
	"procwatch/ui/tui/state"
	"procwatch/ui/tui/styles"
)

type TableView struct{}

func (v TableView) Render(s state.AppState, props ViewProps) string {
	r := s.Report

	// 1. Title bar
	title := lipgloss.JoinHorizontal(lipgloss.Left,
		props.SpinnerView,
		styles.TitleStyle.Render("PROCWATCH"),
		styles.DimStyle.Render(updatedText(r)),
	)
	if r.Stale {
		title = lipgloss.JoinHorizontal(lipgloss.Left, title, styles.StaleStyle.Render("  ! stale: sampling is failing"))
	}
	if s.Host != "" {
		title = lipgloss.JoinVertical(lipgloss.Left, title, styles.DimStyle.PaddingLeft(2).Render(s.Host))
	}

	// 2. Process table
	headers := make([]string, 0, len(r.Headers)+2)
	headers = append(headers, "")
	for _, h := range r.Headers {
		headers = append(headers, mark(props, HeaderZone(h.Key), h.Label()))
	}
	headers = append(headers, "")

	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, 0, len(row.Cells)+2)
		box := "[ ]"
		if row.Selected {
			box = "[x]"
		}
		cells = append(cells, mark(props, RowZone(row.PID), box))
		for i, c := range row.Cells {
			if r.Headers[i].Align == engine.AlignLeft {
				c = truncate(c, r.Headers[i].Width)
			}
			cells = append(cells, c)
		}
		cells = append(cells, styles.Marker(row.Status))
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.Highlight)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.HeaderStyle
			}
			st := styles.CellStyle
			if row == s.RowCursor && s.Mode == state.ModeTable {
				st = styles.CursorStyle
			}
			switch {
			case col == len(headers)-1 && row < len(r.Rows):
				return st.Inherit(styles.ColorForStatus(r.Rows[row].Status))
			case col > 0 && col <= len(r.Headers) && r.Headers[col-1].Align == engine.AlignRight:
				return st.Align(lipgloss.Right)
			}
			return st
		})

	body := t.String()
	if r.Empty {
		body = lipgloss.JoinVertical(lipgloss.Left, body, styles.DimStyle.PaddingLeft(2).Render(output.EmptyMessage))
	}

	// 3. Footer and pager
	prev := styles.DisabledButtonStyle.Render("< Previous")
	if r.HasPrev {
		prev = mark(props, PrevZone, styles.ButtonStyle.Render("< Previous"))
	}
	next := styles.DisabledButtonStyle.Render("Next >")
	if r.HasNext {
		next = mark(props, NextZone, styles.ButtonStyle.Render("Next >"))
	}
	pager := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.DimStyle.PaddingRight(2).Render(r.Footer),
		prev, " ", lipgloss.NewStyle().Padding(0, 1).Render(r.PageLabel), " ", next,
	)

	parts := []string{title, props.FilterView, body, pager}
	if s.Err != nil {
		parts = append(parts, styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", s.Err)))
	}
	if props.HelpView != "" {
		parts = append(parts, lipgloss.NewStyle().PaddingLeft(1).Render(props.HelpView))
	}
	return scan(props, lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func updatedText(r output.Report) string {
	if r.Updated == "" {
		return "waiting for first sample"
	}
	return "updated " + r.Updated
}

func truncate(s string, width int) string {
	if width < 4 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + "..."
}
