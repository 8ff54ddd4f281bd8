package engine

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"procwatch/internal/rates"
)

// View is the display-ready projection of a record set under a State.
// A View is never modified after it has been built.
type View struct {
	Rows    []rates.ProcessRecord
	Columns []Column // visible columns, display order

	SortColumn    ColumnKey
	SortDirection Direction
	FilterText    string
	HiddenColumns []ColumnKey

	TotalRows           int     // live processes
	FilteredRows        int     // rows passing the filter
	SelectedRows        int     // live selected processes, filtered or not
	SelectedVisibleRows int     // selected processes passing the filter
	SelectedPIDs        []int32 // ascending

	Page       int
	PageSize   int
	TotalPages int
	HasPrev    bool
	HasNext    bool

	Stale     bool
	UpdatedAt time.Time
}

// IsSelected reports whether pid is selected.
func (v View) IsSelected(pid int32) bool {
	_, ok := slices.BinarySearch(v.SelectedPIDs, pid)
	return ok
}

// Project filters, sorts and pages records under s. It returns s with the
// page index clamped to the available pages, and the resulting View.
func Project(records []rates.ProcessRecord, s State) (State, View) {
	return paginate(records, order(records, s), s)
}

// order returns the filtered records sorted by the state's sort column.
// Ties are broken by ascending PID so the order is total.
func order(records []rates.ProcessRecord, s State) []rates.ProcessRecord {
	needle := strings.ToLower(s.FilterText)
	out := make([]rates.ProcessRecord, 0, len(records))
	for _, r := range records {
		if needle == "" || strings.Contains(strings.ToLower(r.Name), needle) {
			out = append(out, r)
		}
	}

	col, ok := LookupColumn(s.SortColumn)
	if !ok {
		col, _ = LookupColumn(ColumnPID)
	}
	desc := s.SortDirection == Descending
	slices.SortFunc(out, func(a, b rates.ProcessRecord) int {
		c := col.Compare(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
	return out
}

func paginate(records, ordered []rates.ProcessRecord, s State) (State, View) {
	size := s.PageSize
	if size <= 0 {
		size = DefaultConfig().PageSize
	}

	totalPages := (len(ordered) + size - 1) / size
	page := s.Page
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	s.Page = page

	start := min(page*size, len(ordered))
	end := min(start+size, len(ordered))
	rows := slices.Clone(ordered[start:end])

	selectedLive := 0
	selectedPIDs := make([]int32, 0, len(s.selected))
	for _, r := range records {
		if s.IsSelected(r.PID) {
			selectedLive++
			selectedPIDs = append(selectedPIDs, r.PID)
		}
	}
	slices.Sort(selectedPIDs)

	selectedVisible := 0
	for _, r := range ordered {
		if s.IsSelected(r.PID) {
			selectedVisible++
		}
	}

	visible := make([]Column, 0, len(columns))
	for _, c := range columns {
		if !s.IsHidden(c.Key) {
			visible = append(visible, c)
		}
	}

	return s, View{
		Rows:                rows,
		Columns:             visible,
		SortColumn:          s.SortColumn,
		SortDirection:       s.SortDirection,
		FilterText:          s.FilterText,
		HiddenColumns:       s.HiddenColumns(),
		TotalRows:           len(records),
		FilteredRows:        len(ordered),
		SelectedRows:        selectedLive,
		SelectedVisibleRows: selectedVisible,
		SelectedPIDs:        selectedPIDs,
		Page:                page,
		PageSize:            size,
		TotalPages:          totalPages,
		HasPrev:             page > 0,
		HasNext:             page < totalPages-1,
	}
}
