package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"procwatch/internal/collector"
	"procwatch/internal/engine"
	"procwatch/internal/flagger"
	"procwatch/internal/output"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// Printer renders reports as plain text tables. Color adds ANSI escapes.
// Host, when known, is printed under the title.
type Printer struct {
	Color bool
	Host  collector.HostInfo
}

// Print renders the report to w.
func (p Printer) Print(w io.Writer, r output.Report) {
	title := "PROCWATCH"
	if r.Filter != "" {
		title += fmt.Sprintf("  filter %q", r.Filter)
	}
	if r.Updated != "" {
		title += "  updated " + r.Updated
	}
	fmt.Fprintf(w, "%s\n", p.paint(colorCyan, "■ "+title))
	if host := output.HostLine(p.Host); host != "" {
		fmt.Fprintf(w, "%s\n", p.paint(colorDim, "  "+host))
	}
	if r.Stale {
		fmt.Fprintf(w, "%s\n", p.paint(colorYellow, "! data is stale: recent samples failed"))
	}

	widths := columnWidths(r)

	// Header row
	var b strings.Builder
	b.WriteString("    ")
	for i, h := range r.Headers {
		b.WriteString(pad(h.Label(), widths[i], h.Align))
		b.WriteString("  ")
	}
	fmt.Fprintf(w, "%s\n", p.paint(colorCyan, strings.TrimRight(b.String(), " ")))
	fmt.Fprintf(w, "%s\n", p.paint(colorCyan, "    "+strings.Repeat("─", max(totalWidth(widths)-2, 0))))

	if r.Empty {
		fmt.Fprintf(w, "    %s\n", output.EmptyMessage)
	}
	for _, row := range r.Rows {
		b.Reset()
		if row.Selected {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
		for i, cell := range row.Cells {
			b.WriteString(pad(truncate(cell, widths[i]), widths[i], r.Headers[i].Align))
			b.WriteString("  ")
		}
		line := strings.TrimRight(b.String(), " ")
		fmt.Fprintf(w, "%s %s\n", line, p.marker(row.Status))
	}

	pager := r.PageLabel
	if r.HasPrev {
		pager = "< Previous  " + pager
	}
	if r.HasNext {
		pager += "  Next >"
	}
	fmt.Fprintf(w, "%s  %s\n\n", p.paint(colorDim, r.Footer), pager)
}

func (p Printer) paint(color, s string) string {
	if !p.Color {
		return s
	}
	return color + s + colorReset
}

func (p Printer) marker(status flagger.Status) string {
	switch status {
	case flagger.StatusWarn:
		return p.paint(colorFor(string(status)), "!")
	case flagger.StatusCrit:
		return p.paint(colorFor(string(status)), "X")
	default:
		return p.paint(colorFor(string(status)), "✓")
	}
}

func colorFor(status string) string {
	switch status {
	case "WARN":
		return colorYellow
	case "CRIT":
		return colorRed
	default:
		return colorGreen
	}
}

func columnWidths(r output.Report) []int {
	widths := make([]int, len(r.Headers))
	for i, h := range r.Headers {
		widths[i] = lipgloss.Width(h.Label())
		if h.Align == engine.AlignLeft {
			widths[i] = max(widths[i], h.Width)
		}
	}
	for _, row := range r.Rows {
		for i, cell := range row.Cells {
			if r.Headers[i].Align == engine.AlignRight {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	return widths
}

func totalWidth(widths []int) int {
	n := 0
	for _, w := range widths {
		n += w + 2
	}
	return n
}

func pad(s string, width int, align engine.Align) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if align == engine.AlignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width || width < 4 {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
