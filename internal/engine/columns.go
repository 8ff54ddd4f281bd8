package engine

import (
	"cmp"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"procwatch/internal/rates"
)

// ColumnKey identifies a table column.
type ColumnKey string

const (
	ColumnName    ColumnKey = "name"
	ColumnPID     ColumnKey = "pid"
	ColumnCPU     ColumnKey = "cpu"
	ColumnMemory  ColumnKey = "memory"
	ColumnDisk    ColumnKey = "disk"
	ColumnNetwork ColumnKey = "network"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Column describes how one field of a ProcessRecord is compared and shown.
// The engine sorts with Compare; renderers print Format.
type Column struct {
	Key     ColumnKey
	Title   string
	Numeric bool
	Align   Align
	Width   int
	Compare func(a, b rates.ProcessRecord) int
	Format  func(r rates.ProcessRecord) string
}

var numbers = message.NewPrinter(language.English)

var columns = []Column{
	{
		Key:     ColumnName,
		Title:   "Name",
		Align:   AlignLeft,
		Width:   24,
		Compare: compareName,
		Format:  func(r rates.ProcessRecord) string { return r.Name },
	},
	{
		Key:     ColumnPID,
		Title:   "Process ID",
		Numeric: true,
		Align:   AlignRight,
		Width:   10,
		Compare: func(a, b rates.ProcessRecord) int { return cmp.Compare(a.PID, b.PID) },
		Format:  func(r rates.ProcessRecord) string { return fmt.Sprintf("%d", r.PID) },
	},
	{
		Key:     ColumnCPU,
		Title:   "CPU (%)",
		Numeric: true,
		Align:   AlignRight,
		Width:   8,
		Compare: func(a, b rates.ProcessRecord) int { return cmp.Compare(a.CPUPercent, b.CPUPercent) },
		Format:  func(r rates.ProcessRecord) string { return fmt.Sprintf("%.1f%%", r.CPUPercent) },
	},
	{
		Key:     ColumnMemory,
		Title:   "Memory (MB)",
		Numeric: true,
		Align:   AlignRight,
		Width:   11,
		Compare: func(a, b rates.ProcessRecord) int { return cmp.Compare(a.MemoryBytes, b.MemoryBytes) },
		Format: func(r rates.ProcessRecord) string {
			return numbers.Sprintf("%d", int64(math.Round(float64(r.MemoryBytes)/(1024*1024))))
		},
	},
	{
		Key:     ColumnDisk,
		Title:   "Disk I/O (MB/s)",
		Numeric: true,
		Align:   AlignRight,
		Width:   15,
		Compare: func(a, b rates.ProcessRecord) int { return cmp.Compare(a.DiskMBps, b.DiskMBps) },
		Format:  func(r rates.ProcessRecord) string { return fmt.Sprintf("%.2f", r.DiskMBps) },
	},
	{
		Key:     ColumnNetwork,
		Title:   "Network I/O (Mbps)",
		Numeric: true,
		Align:   AlignRight,
		Width:   18,
		Compare: func(a, b rates.ProcessRecord) int { return cmp.Compare(a.NetworkMbps, b.NetworkMbps) },
		Format:  func(r rates.ProcessRecord) string { return fmt.Sprintf("%.2f", r.NetworkMbps) },
	},
}

// compareName orders case-insensitively, falling back to byte order.
func compareName(a, b rates.ProcessRecord) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// Columns returns the column registry in display order.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// LookupColumn returns the descriptor for key.
func LookupColumn(key ColumnKey) (Column, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// ParseColumn resolves a user-supplied column name. Unknown names are a
// *TransitionError.
func ParseColumn(s string) (ColumnKey, error) {
	key := ColumnKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := LookupColumn(key); !ok {
		return "", &TransitionError{Event: "ParseColumn", Reason: fmt.Sprintf("unknown column %q", s)}
	}
	return key, nil
}
