package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counter names one cumulative counter of a RawSample.
type Counter uint8

const (
	CounterCPU Counter = 1 << iota
	CounterDisk
	CounterNet
)

// RawSample is one process's cumulative counters for one sampling tick.
type RawSample struct {
	PID         int32
	Name        string
	CreateTime  int64 // ms since epoch, 0 when unknown
	CPUSeconds  float64
	DiskBytes   uint64 // read + written
	NetBytes    uint64 // sent + received
	MemoryBytes uint64 // resident
	Timestamp   time.Time

	// Unreadable marks counters the source could not read this tick.
	Unreadable Counter
}

// Readable reports whether counter c holds a real cumulative reading.
func (s RawSample) Readable(c Counter) bool {
	return s.Unreadable&c == 0
}

// Snapshot is the complete sample set of one tick.
type Snapshot struct {
	Samples     []RawSample
	TakenAt     time.Time
	Cores       int
	TotalMemory uint64
	Host        HostInfo
}

// ErrAcquisition matches every *AcquisitionError.
var ErrAcquisition = errors.New("process acquisition failed")

// AcquisitionError reports a failed process query. The tick produces no snapshot.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return "acquisition error: " + e.Err.Error()
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

// ErrNoHostInfo is returned by Sampler.HostInfo when the source cannot
// describe the host.
var ErrNoHostInfo = errors.New("source does not provide host info")

// Sampler turns a ProcessSource into complete, timestamped snapshots.
type Sampler struct {
	source      ProcessSource
	timeout     time.Duration
	hostTimeout time.Duration
	now         func() time.Time

	hostMu    sync.Mutex
	host      HostInfo
	hostKnown bool
}

// NewSampler wraps source; each query is bounded by cfg.QueryTimeout and
// each host lookup by cfg.HostTimeout.
func NewSampler(source ProcessSource, cfg CollectorConfig) *Sampler {
	return &Sampler{
		source:      source,
		timeout:     cfg.QueryTimeout,
		hostTimeout: cfg.HostTimeout,
		now:         time.Now,
	}
}

// Sample queries the source once. It returns either a complete snapshot or
// an *AcquisitionError, never a partial snapshot.
func (s *Sampler) Sample(ctx context.Context) (Snapshot, error) {
	// A failed lookup is retried next tick; rates then use zero host facts.
	host, _ := s.HostInfo(ctx)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	samples, err := s.source.QueryProcesses(ctx)
	if err != nil {
		return Snapshot{}, &AcquisitionError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, &AcquisitionError{Err: err}
	}

	seen := make(map[int32]struct{}, len(samples))
	for _, rs := range samples {
		if _, dup := seen[rs.PID]; dup {
			return Snapshot{}, &AcquisitionError{Err: fmt.Errorf("pid %d reported twice", rs.PID)}
		}
		seen[rs.PID] = struct{}{}
	}

	taken := s.now()
	for i := range samples {
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = taken
		}
	}

	return Snapshot{
		Samples:     samples,
		TakenAt:     taken,
		Cores:       host.LogicalCores,
		TotalMemory: host.TotalMemory,
		Host:        host,
	}, nil
}

// HostInfo returns the host facts. The source is asked on every call until
// one lookup succeeds; the result is then cached for the Sampler's life.
func (s *Sampler) HostInfo(ctx context.Context) (HostInfo, error) {
	hs, ok := s.source.(HostInfoSource)
	if !ok {
		return HostInfo{}, ErrNoHostInfo
	}

	s.hostMu.Lock()
	defer s.hostMu.Unlock()
	if s.hostKnown {
		return s.host, nil
	}

	if s.hostTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.hostTimeout)
		defer cancel()
	}
	info, err := hs.HostInfo(ctx)
	if err != nil {
		return HostInfo{}, fmt.Errorf("host info lookup failed: %w", err)
	}
	s.host = info
	s.hostKnown = true
	return info, nil
}
