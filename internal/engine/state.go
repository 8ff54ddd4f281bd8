package engine

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"procwatch/internal/rates"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// ErrInvalidTransition matches every *TransitionError.
var ErrInvalidTransition = errors.New("invalid state transition")

// TransitionError reports an interaction event that no UI control should be
// able to produce, such as an unknown column.
type TransitionError struct {
	Event  string
	Reason string
}

func (e *TransitionError) Error() string {
	return "invalid state transition: " + e.Event + ": " + e.Reason
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// State is the user-controlled table configuration. It is a value: every
// transition returns a new State and leaves its input untouched.
type State struct {
	SortColumn    ColumnKey
	SortDirection Direction
	FilterText    string
	Page          int
	PageSize      int

	hidden   map[ColumnKey]struct{}
	selected map[int32]struct{}
}

// NewState builds the initial state from cfg.
func NewState(cfg Config) (State, error) {
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}
	s := State{
		SortColumn:    ColumnKey(cfg.SortColumn),
		SortDirection: Direction(cfg.SortDirection),
		PageSize:      cfg.PageSize,
	}
	for _, h := range cfg.HiddenColumns {
		key, _ := ParseColumn(h)
		s = s.withHidden(key, true)
	}
	return s, nil
}

// IsHidden reports whether column key is hidden.
func (s State) IsHidden(key ColumnKey) bool {
	_, ok := s.hidden[key]
	return ok
}

// HiddenColumns returns the hidden columns in registry order.
func (s State) HiddenColumns() []ColumnKey {
	var out []ColumnKey
	for _, c := range columns {
		if s.IsHidden(c.Key) {
			out = append(out, c.Key)
		}
	}
	return out
}

// IsSelected reports whether pid is in the selection set.
func (s State) IsSelected(pid int32) bool {
	_, ok := s.selected[pid]
	return ok
}

// Selected returns the selected PIDs in ascending order.
func (s State) Selected() []int32 {
	out := slices.Collect(maps.Keys(s.selected))
	slices.Sort(out)
	return out
}

func (s State) withHidden(key ColumnKey, hidden bool) State {
	next := maps.Clone(s.hidden)
	if next == nil {
		next = make(map[ColumnKey]struct{})
	}
	if hidden {
		next[key] = struct{}{}
	} else {
		delete(next, key)
	}
	s.hidden = next
	return s
}

func (s State) withSelected(pids []int32, selected bool) State {
	next := maps.Clone(s.selected)
	if next == nil {
		next = make(map[int32]struct{})
	}
	for _, pid := range pids {
		if selected {
			next[pid] = struct{}{}
		} else {
			delete(next, pid)
		}
	}
	s.selected = next
	return s
}

// Event is a user interaction accepted by Apply.
type Event interface {
	event()
}

type (
	// SetFilter replaces the name filter and returns to the first page.
	SetFilter struct{ Text string }
	// ToggleSort flips the direction on the active column or switches to a
	// new column in ascending order.
	ToggleSort struct{ Column ColumnKey }
	// SetPage moves to a page; out-of-range values are clamped. A positive
	// Size changes the rows per page in the same transition, before Page is
	// applied against it.
	SetPage struct {
		Page int
		Size int
	}
	NextPage struct{}
	PrevPage struct{}
	// ToggleSelection adds or removes one PID from the selection.
	ToggleSelection struct{ PID int32 }
	// SetSelection selects or deselects several PIDs at once.
	SetSelection struct {
		PIDs     []int32
		Selected bool
	}
	ClearSelection struct{}
	// ToggleColumn hides or shows a column.
	ToggleColumn struct{ Column ColumnKey }
	// SetPageSize changes the rows per page, keeping the first visible row on screen.
	SetPageSize struct{ Size int }
)

func (SetFilter) event()       {}
func (ToggleSort) event()      {}
func (SetPage) event()         {}
func (NextPage) event()        {}
func (PrevPage) event()        {}
func (ToggleSelection) event() {}
func (SetSelection) event()    {}
func (ClearSelection) event()  {}
func (ToggleColumn) event()    {}
func (SetPageSize) event()     {}

// Apply returns the state that results from ev. It never mutates s. Page
// indexes past the last page are clamped later by Project, which knows the
// row count.
func Apply(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case SetFilter:
		s.FilterText = e.Text
		s.Page = 0
	case ToggleSort:
		if _, ok := LookupColumn(e.Column); !ok {
			return s, unknownColumn("ToggleSort", e.Column)
		}
		if s.SortColumn == e.Column {
			s.SortDirection = s.SortDirection.Flip()
		} else {
			s.SortColumn = e.Column
			s.SortDirection = Ascending
		}
	case SetPage:
		if e.Size < 0 {
			return s, &TransitionError{Event: "SetPage", Reason: fmt.Sprintf("page size %d must not be negative", e.Size)}
		}
		if e.Size > 0 {
			s.PageSize = e.Size
		}
		s.Page = max(e.Page, 0)
	case NextPage:
		s.Page++
	case PrevPage:
		s.Page = max(s.Page-1, 0)
	case ToggleSelection:
		s = s.withSelected([]int32{e.PID}, !s.IsSelected(e.PID))
	case SetSelection:
		s = s.withSelected(e.PIDs, e.Selected)
	case ClearSelection:
		s.selected = nil
	case ToggleColumn:
		if _, ok := LookupColumn(e.Column); !ok {
			return s, unknownColumn("ToggleColumn", e.Column)
		}
		s = s.withHidden(e.Column, !s.IsHidden(e.Column))
	case SetPageSize:
		if e.Size <= 0 {
			return s, &TransitionError{Event: "SetPageSize", Reason: fmt.Sprintf("page size %d must be positive", e.Size)}
		}
		first := s.Page * s.PageSize
		s.PageSize = e.Size
		s.Page = first / e.Size
	case nil:
		return s, &TransitionError{Event: "nil", Reason: "no event"}
	default:
		return s, &TransitionError{Event: fmt.Sprintf("%T", ev), Reason: "unsupported event"}
	}
	return s, nil
}

// Reconcile drops selected PIDs that are no longer live.
func Reconcile(s State, records []rates.ProcessRecord) State {
	if len(s.selected) == 0 {
		return s
	}
	live := make(map[int32]struct{}, len(records))
	for _, r := range records {
		live[r.PID] = struct{}{}
	}
	var gone []int32
	for pid := range s.selected {
		if _, ok := live[pid]; !ok {
			gone = append(gone, pid)
		}
	}
	if len(gone) == 0 {
		return s
	}
	return s.withSelected(gone, false)
}

func unknownColumn(event string, key ColumnKey) error {
	return &TransitionError{Event: event, Reason: fmt.Sprintf("unknown column %q", key)}
}
