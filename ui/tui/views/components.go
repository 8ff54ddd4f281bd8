package views

import (
	"fmt"

	"procwatch/internal/engine"
)

// Zone IDs for clickable regions.
const (
	PrevZone = "pager_prev"
	NextZone = "pager_next"
)

func HeaderZone(key engine.ColumnKey) string { return "header_" + string(key) }

func RowZone(pid int32) string { return fmt.Sprintf("row_%d", pid) }

func ColumnZone(i int) string { return fmt.Sprintf("column_%d", i) }

func mark(props ViewProps, id, s string) string {
	if props.Zones == nil {
		return s
	}
	return props.Zones.Mark(id, s)
}

func scan(props ViewProps, s string) string {
	if props.Zones == nil {
		return s
	}
	return props.Zones.Scan(s)
}
