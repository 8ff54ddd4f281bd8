// Package rates derives per-process rates from consecutive cumulative samples.
package rates

import (
	"errors"
	"fmt"
	"math"
	"time"

	"procwatch/internal/collector"
)

const (
	bytesPerMB     = 1024 * 1024
	bitsPerMegabit = 1e6
)

// ProcessRecord is one live process with rates derived for the latest tick.
type ProcessRecord struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	MemoryBytes   uint64  `json:"memory_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
	CPUPercent    float64 `json:"cpu_percent"`
	DiskMBps      float64 `json:"disk_mbps"`
	NetworkMbps   float64 `json:"network_mbps"`
}

// ErrClockAnomaly matches every *ClockAnomalyError.
var ErrClockAnomaly = errors.New("clock anomaly")

// ClockAnomalyError reports a non-positive interval between two samples.
type ClockAnomalyError struct {
	Elapsed float64
}

func (e *ClockAnomalyError) Error() string {
	return fmt.Sprintf("clock anomaly: elapsed %.6fs between samples", e.Elapsed)
}

func (e *ClockAnomalyError) Is(target error) bool { return target == ErrClockAnomaly }

// Compute matches current against previous by PID and derives rates over
// elapsedSeconds. PIDs only in previous are dropped; PIDs new in current,
// reused PIDs, counters that went backwards and counters unreadable in
// either sample report 0 for this tick.
func Compute(previous, current []collector.RawSample, elapsedSeconds float64) ([]ProcessRecord, error) {
	if !(elapsedSeconds > 0) {
		return nil, &ClockAnomalyError{Elapsed: elapsedSeconds}
	}

	prevByPID := make(map[int32]collector.RawSample, len(previous))
	for _, p := range previous {
		prevByPID[p.PID] = p
	}

	out := make([]ProcessRecord, 0, len(current))
	for _, cur := range current {
		rec := ProcessRecord{
			PID:         cur.PID,
			Name:        cur.Name,
			MemoryBytes: cur.MemoryBytes,
		}
		prev, ok := prevByPID[cur.PID]
		if ok && !reused(prev, cur) {
			if readable(prev, cur, collector.CounterCPU) {
				rec.CPUPercent = floatRate(prev.CPUSeconds, cur.CPUSeconds, elapsedSeconds) * 100
			}
			if readable(prev, cur, collector.CounterDisk) {
				rec.DiskMBps = rate(prev.DiskBytes, cur.DiskBytes, elapsedSeconds) / bytesPerMB
			}
			if readable(prev, cur, collector.CounterNet) {
				rec.NetworkMbps = rate(prev.NetBytes, cur.NetBytes, elapsedSeconds) * 8 / bitsPerMegabit
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func reused(prev, cur collector.RawSample) bool {
	return prev.CreateTime != 0 && cur.CreateTime != 0 && prev.CreateTime != cur.CreateTime
}

func readable(prev, cur collector.RawSample, c collector.Counter) bool {
	return prev.Readable(c) && cur.Readable(c)
}

func rate(prev, cur uint64, dt float64) float64 {
	return float64(delta(prev, cur)) / dt
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return 0 // wraparound or reuse
}

func floatRate(prev, cur, dt float64) float64 {
	d := cur - prev
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d / dt
}

// Tracker feeds consecutive snapshots through Compute. Only the latest
// accepted snapshot is kept as the baseline for the next one.
type Tracker struct {
	NormalizeCPU bool

	baseline    []collector.RawSample
	baselineAt  time.Time
	hasBaseline bool
	last        []ProcessRecord
}

// NewTracker returns a Tracker; normalizeCPU divides CPU% by the core count.
func NewTracker(normalizeCPU bool) *Tracker {
	return &Tracker{NormalizeCPU: normalizeCPU}
}

// Update derives records for snap. The first snapshot yields zero rates.
// On a clock anomaly snap is discarded and the previous records are
// returned together with the *ClockAnomalyError.
func (t *Tracker) Update(snap collector.Snapshot) ([]ProcessRecord, error) {
	var (
		records []ProcessRecord
		err     error
	)
	if !t.hasBaseline {
		records, err = Compute(nil, snap.Samples, 1)
	} else {
		records, err = Compute(t.baseline, snap.Samples, snap.TakenAt.Sub(t.baselineAt).Seconds())
	}
	if err != nil {
		return t.last, err
	}

	for i := range records {
		if t.NormalizeCPU && snap.Cores > 0 {
			records[i].CPUPercent /= float64(snap.Cores)
		}
		if snap.TotalMemory > 0 {
			records[i].MemoryPercent = float64(records[i].MemoryBytes) / float64(snap.TotalMemory) * 100
		}
	}

	t.baseline = snap.Samples
	t.baselineAt = snap.TakenAt
	t.hasBaseline = true
	t.last = records
	return records, nil
}
