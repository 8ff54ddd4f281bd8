package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sync/errgroup"
)

// ProcessCounters is one process's cumulative counters at ReadAt.
type ProcessCounters struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	CreateTime int64     `json:"create_time_ms,omitempty"`
	CPUSeconds float64   `json:"cpu_seconds"`
	DiskBytes  uint64    `json:"disk_bytes"`
	NetBytes   uint64    `json:"net_bytes"`
	RSSBytes   uint64    `json:"rss_bytes"`
	ReadAt     time.Time `json:"read_at"`

	// Set when the counter could not be read this tick. The matching
	// value above is zero and must not be used as a cumulative reading.
	CPUUnreadable  bool `json:"cpu_unreadable,omitempty"`
	DiskUnreadable bool `json:"disk_unreadable,omitempty"`
	NetUnreadable  bool `json:"net_unreadable,omitempty"`
}

type ProcessResult struct {
	Processes []ProcessCounters `json:"processes"`
}

// ProcessSensor reads cumulative counters for every live process.
type ProcessSensor struct {
	workers    int
	netCounter bool
}

// NewProcessSensor returns a sensor reading up to workers processes at a time.
// Per-process network counters are only read when withNet is true.
func NewProcessSensor(workers int, withNet bool) *ProcessSensor {
	if workers <= 0 {
		workers = 1
	}
	return &ProcessSensor{workers: workers, netCounter: withNet}
}

func (s *ProcessSensor) Name() string {
	return "Process"
}

func (s *ProcessSensor) Collect(ctx context.Context) (any, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pids: %w", err)
	}

	// Slots stay nil for processes that exited while being read.
	slots := make([]*ProcessCounters, len(pids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, pid := range pids {
		g.Go(func() error {
			c, err := s.read(gctx, pid)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			slots[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read processes: %w", err)
	}

	processes := make([]ProcessCounters, 0, len(pids))
	for _, c := range slots {
		if c != nil {
			processes = append(processes, *c)
		}
	}
	return ProcessResult{Processes: processes}, nil
}

// read returns an error only when the process is gone; counters that the
// caller is not permitted to read are zero and flagged unreadable.
func (s *ProcessSensor) read(ctx context.Context, pid int32) (*ProcessCounters, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, err
		}
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return nil, process.ErrorProcessNotRunning
		}
	}

	c := &ProcessCounters{PID: pid, Name: name}
	if ct, err := p.CreateTimeWithContext(ctx); err == nil {
		c.CreateTime = ct
	}
	if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
		c.CPUSeconds = times.User + times.System
	} else {
		c.CPUUnreadable = true
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		c.RSSBytes = mem.RSS
	}
	if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
		c.DiskBytes = io.ReadBytes + io.WriteBytes
	} else {
		c.DiskUnreadable = true
	}
	if s.netCounter {
		if n, err := netBytes(pid); err == nil {
			c.NetBytes = n
		} else {
			c.NetUnreadable = true
		}
	}
	c.ReadAt = time.Now()
	return c, nil
}
