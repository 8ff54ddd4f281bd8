package output

import (
	"fmt"
	"strings"
	"time"

	"procwatch/internal/collector"
	"procwatch/internal/engine"
	"procwatch/internal/flagger"
	"procwatch/internal/rates"
)

const (
	EmptyMessage      = "No results."
	FilterPlaceholder = "Filter names..."
	ArrowAsc          = "▲"
	ArrowDesc         = "▼"
)

// UI/view-model types (no printing here)
type Header struct {
	Key    engine.ColumnKey
	Title  string
	Align  engine.Align
	Width  int
	Sorted bool
	Arrow  string // sort indicator, empty when not the sort column
}

// Label is the title with its sort arrow.
func (h Header) Label() string {
	if h.Arrow == "" {
		return h.Title
	}
	return h.Title + " " + h.Arrow
}

type Row struct {
	PID      int32
	Cells    []string // one per header
	Selected bool
	Status   flagger.Status
	Note     string
}

type Report struct {
	Filter    string
	Headers   []Header
	Rows      []Row
	Empty     bool
	Footer    string // "N of M row(s) selected."
	PageLabel string
	HasPrev   bool
	HasNext   bool
	Stale     bool
	Updated   string
}

// RowFlagger grades a record. FlaggerService satisfies it.
type RowFlagger interface {
	Flag(r rates.ProcessRecord) flagger.Flags
}

// BuildReport converts a view into display-ready strings. flg may be nil,
// in which case every row is OK.
func BuildReport(v engine.View, flg RowFlagger) Report {
	r := Report{
		Filter:    v.FilterText,
		Headers:   make([]Header, 0, len(v.Columns)),
		Rows:      make([]Row, 0, len(v.Rows)),
		Empty:     len(v.Rows) == 0,
		Footer:    Footer(v),
		PageLabel: PageLabel(v),
		HasPrev:   v.HasPrev,
		HasNext:   v.HasNext,
		Stale:     v.Stale,
	}
	if !v.UpdatedAt.IsZero() {
		r.Updated = v.UpdatedAt.Local().Format(time.TimeOnly)
	}

	for _, c := range v.Columns {
		h := Header{Key: c.Key, Title: c.Title, Align: c.Align, Width: c.Width}
		if c.Key == v.SortColumn {
			h.Sorted = true
			h.Arrow = ArrowAsc
			if v.SortDirection == engine.Descending {
				h.Arrow = ArrowDesc
			}
		}
		r.Headers = append(r.Headers, h)
	}

	for _, rec := range v.Rows {
		row := Row{
			PID:      rec.PID,
			Cells:    make([]string, len(v.Columns)),
			Selected: v.IsSelected(rec.PID),
			Status:   flagger.StatusOK,
		}
		for i, c := range v.Columns {
			row.Cells[i] = c.Format(rec)
		}
		if flg != nil {
			f := flg.Flag(rec)
			row.Status = f.Status
			row.Note = f.Explanation
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

// Footer counts selected rows among the filtered rows.
func Footer(v engine.View) string {
	return fmt.Sprintf("%d of %d row(s) selected.", v.SelectedVisibleRows, v.FilteredRows)
}

// PageLabel is "Page X of Y", with at least one page.
func PageLabel(v engine.View) string {
	return fmt.Sprintf("Page %d of %d", v.Page+1, max(v.TotalPages, 1))
}

// HostLine summarises the watched machine on one line, or returns "" when
// nothing is known yet. Empty facts are skipped.
func HostLine(h collector.HostInfo) string {
	if !h.Known() {
		return ""
	}
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}
	add(h.Hostname)
	add(strings.TrimSpace(h.Platform + " " + h.PlatformVersion))
	add(strings.TrimSpace(h.OS + " " + h.KernelVersion + " " + h.Arch))
	if h.CPUModel != "" && h.CPUModel != "Unknown" {
		add(h.CPUModel)
	}
	if h.LogicalCores > 0 {
		add(fmt.Sprintf("%d cores", h.LogicalCores))
	}
	if h.TotalMemory > 0 {
		add(fmt.Sprintf("%.1f GiB", float64(h.TotalMemory)/(1<<30)))
	}
	return strings.Join(parts, " · ")
}
