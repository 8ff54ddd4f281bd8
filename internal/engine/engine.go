// Package engine owns the process table state: sorting, filtering,
// selection, column visibility and pagination over the latest record set.
package engine

import (
	"procwatch/internal/rates"
)

// orderKey identifies the inputs the filtered+sorted order depends on.
type orderKey struct {
	generation uint64
	filter     string
	column     ColumnKey
	direction  Direction
}

// Engine holds the current State and record set and caches the
// filtered+sorted order between events that do not affect it. It is not
// safe for concurrent use; callers serialize access.
type Engine struct {
	state      State
	records    []rates.ProcessRecord
	generation uint64

	cacheKey   orderKey
	cacheValid bool
	ordered    []rates.ProcessRecord
}

// New returns an Engine with an empty record set.
func New(cfg Config) (*Engine, error) {
	s, err := NewState(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{state: s}, nil
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// SetRecords installs a new record set, drops selections of exited
// processes and returns the recomputed view.
func (e *Engine) SetRecords(records []rates.ProcessRecord) View {
	e.records = records
	e.generation++
	e.state = Reconcile(e.state, records)
	return e.View()
}

// Dispatch applies ev. On error the state is left unchanged and the view
// for the unchanged state is returned with it.
func (e *Engine) Dispatch(ev Event) (View, error) {
	next, err := Apply(e.state, ev)
	if err != nil {
		return e.View(), err
	}
	e.state = next
	return e.View(), nil
}

// View projects the current records under the current state, clamping the
// stored page index if the row count shrank.
func (e *Engine) View() View {
	var v View
	e.state, v = paginate(e.records, e.order(), e.state)
	return v
}

func (e *Engine) order() []rates.ProcessRecord {
	key := orderKey{
		generation: e.generation,
		filter:     e.state.FilterText,
		column:     e.state.SortColumn,
		direction:  e.state.SortDirection,
	}
	if e.cacheValid && key == e.cacheKey {
		return e.ordered
	}
	e.ordered = order(e.records, e.state)
	e.cacheKey = key
	e.cacheValid = true
	return e.ordered
}
