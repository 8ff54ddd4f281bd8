package output

import (
	"time"

	"procwatch/internal/flagger"
	"procwatch/internal/rates"
)

// TickPayload represents one sampling tick ready for persistence.
// The history recorder pulls this from the Output layer to push to DuckDB.
type TickPayload struct {
	At      time.Time
	Records []rates.ProcessRecord
	Flags   map[int32]flagger.Flags
}

// DataFlagger grades a whole record set.
type DataFlagger interface {
	FlagAll(records []rates.ProcessRecord) map[int32]flagger.Flags
}

// BuildPayload bundles a tick with its flags. flg may be nil.
func BuildPayload(at time.Time, records []rates.ProcessRecord, flg DataFlagger) TickPayload {
	p := TickPayload{At: at, Records: records}
	if flg != nil {
		p.Flags = flg.FlagAll(records)
	}
	return p
}

// Severity returns the flag level recorded for pid, 0 when unflagged.
func (p TickPayload) Severity(pid int32) int {
	return p.Flags[pid].SeverityLevel
}

// Status returns the status recorded for pid, OK when unflagged.
func (p TickPayload) Status(pid int32) flagger.Status {
	if f, ok := p.Flags[pid]; ok {
		return f.Status
	}
	return flagger.StatusOK
}
