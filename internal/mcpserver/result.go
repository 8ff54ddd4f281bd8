package mcpserver

import (
	"time"

	"procwatch/internal/engine"
	"procwatch/internal/output"
)

// ColumnInfo describes one column of the table.
type ColumnInfo struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Hidden bool   `json:"hidden"`
}

// ProcessRow is one row of the current page.
type ProcessRow struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryBytes   uint64  `json:"memory_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskMBps      float64 `json:"disk_mbps"`
	NetworkMbps   float64 `json:"network_mbps"`
	Selected      bool    `json:"selected"`
	Status        string  `json:"status" jsonschema:"OK, WARN or CRIT"`
	Note          string  `json:"note,omitempty"`
}

// ViewResult is the tool-facing shape of engine.View.
type ViewResult struct {
	Rows          []ProcessRow `json:"rows"`
	Columns       []ColumnInfo `json:"columns"`
	SortColumn    string       `json:"sort_column"`
	SortDirection string       `json:"sort_direction"`
	Filter        string       `json:"filter"`
	Page          int          `json:"page" jsonschema:"current page number starting at 1"`
	PageSize      int          `json:"page_size"`
	TotalPages    int          `json:"total_pages"`
	TotalRows     int          `json:"total_rows"`
	FilteredRows  int          `json:"filtered_rows"`
	SelectedRows  int          `json:"selected_rows"`
	SelectedPIDs  []int32      `json:"selected_pids"`
	Footer        string       `json:"footer"`
	Stale         bool         `json:"stale" jsonschema:"true when recent samples failed"`
	UpdatedAt     string       `json:"updated_at,omitempty" jsonschema:"RFC 3339 time of the last successful sample"`
}

func (s *Server) toResult(v engine.View) ViewResult {
	report := output.BuildReport(v, s.flagger)

	res := ViewResult{
		Rows:          make([]ProcessRow, 0, len(v.Rows)),
		SortColumn:    string(v.SortColumn),
		SortDirection: string(v.SortDirection),
		Filter:        v.FilterText,
		Page:          v.Page + 1,
		PageSize:      v.PageSize,
		TotalPages:    v.TotalPages,
		TotalRows:     v.TotalRows,
		FilteredRows:  v.FilteredRows,
		SelectedRows:  v.SelectedRows,
		SelectedPIDs:  append([]int32{}, v.SelectedPIDs...),
		Footer:        report.Footer,
		Stale:         v.Stale,
	}
	if !v.UpdatedAt.IsZero() {
		res.UpdatedAt = v.UpdatedAt.Format(time.RFC3339)
	}

	hidden := make(map[engine.ColumnKey]bool, len(v.HiddenColumns))
	for _, k := range v.HiddenColumns {
		hidden[k] = true
	}
	for _, c := range engine.Columns() {
		res.Columns = append(res.Columns, ColumnInfo{Key: string(c.Key), Title: c.Title, Hidden: hidden[c.Key]})
	}

	for i, r := range v.Rows {
		row := ProcessRow{
			PID:           r.PID,
			Name:          r.Name,
			CPUPercent:    r.CPUPercent,
			MemoryBytes:   r.MemoryBytes,
			MemoryPercent: r.MemoryPercent,
			DiskMBps:      r.DiskMBps,
			NetworkMbps:   r.NetworkMbps,
			Selected:      report.Rows[i].Selected,
			Status:        string(report.Rows[i].Status),
			Note:          report.Rows[i].Note,
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}
