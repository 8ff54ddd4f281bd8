package state

import (
	"procwatch/internal/engine"
	"procwatch/internal/output"
)

// Mode selects which keys the TUI listens to.
type Mode int

const (
	ModeTable Mode = iota
	ModeFilter
	ModeColumns
)

// AppState holds what the TUI shows between frames.
type AppState struct {
	View         engine.View
	Report       output.Report
	Host         string // output.HostLine of the watched machine
	Err          error  // last rejected interaction
	Mode         Mode
	RowCursor    int // index into View.Rows
	ColumnCursor int // index into engine.Columns()
}

// SetView replaces the displayed view and keeps the row cursor on the page.
func (s *AppState) SetView(v engine.View, flg output.RowFlagger) {
	s.View = v
	s.Report = output.BuildReport(v, flg)
	if s.RowCursor >= len(v.Rows) {
		s.RowCursor = max(len(v.Rows)-1, 0)
	}
}

// CursorPID returns the PID under the row cursor.
func (s AppState) CursorPID() (int32, bool) {
	if s.RowCursor < 0 || s.RowCursor >= len(s.View.Rows) {
		return 0, false
	}
	return s.View.Rows[s.RowCursor].PID, true
}
