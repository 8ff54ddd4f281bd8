package collector

import (
	"context"
	"fmt"

	"procwatch/internal/collector/services"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// INTERFACE DEFINITIONS
// ============================================================================

// ProcessSource is the host platform's process enumeration primitive.
// It must return one sample per live process and be cheap enough to call
// at the sampling cadence.
type ProcessSource interface {
	QueryProcesses(ctx context.Context) ([]RawSample, error)
}

// HostInfoSource is implemented by sources that can also describe the host.
type HostInfoSource interface {
	HostInfo(ctx context.Context) (HostInfo, error)
}

// HostInfo describes the watched machine. LogicalCores and TotalMemory
// feed rate derivation; the rest is shown to the user.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	CPUModel        string `json:"cpu_model"`
	PhysicalCores   int    `json:"physical_cores"`
	LogicalCores    int    `json:"logical_cores"`
	TotalMemory     uint64 `json:"total_memory_bytes"`
}

// Known reports whether any host fact has been filled in.
func (h HostInfo) Known() bool {
	return h.LogicalCores > 0 || h.TotalMemory > 0 || h.Hostname != ""
}

// ============================================================================
// CONCRETE IMPLEMENTATION
// ============================================================================

// SystemCollector reads processes and host facts through gopsutil sensors.
type SystemCollector struct {
	processSensor services.Sensor
	cpuSensor     services.Sensor
	memSensor     services.Sensor
	hostSensor    services.Sensor
}

func NewSystemCollector(cfg CollectorConfig) *SystemCollector {
	return &SystemCollector{
		processSensor: services.NewProcessSensor(cfg.Workers, cfg.ProcessNetwork),
		cpuSensor:     services.NewCPUSensor(),
		memSensor:     services.NewMemSensor(),
		hostSensor:    services.NewHostSensor(),
	}
}

// QueryProcesses returns the cumulative counters of every live process.
func (s *SystemCollector) QueryProcesses(ctx context.Context) ([]RawSample, error) {
	res, err := s.processSensor.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get process metrics: %w", err)
	}
	procs := res.(services.ProcessResult).Processes

	samples := make([]RawSample, 0, len(procs))
	for _, p := range procs {
		samples = append(samples, RawSample{
			PID:         p.PID,
			Name:        p.Name,
			CreateTime:  p.CreateTime,
			CPUSeconds:  p.CPUSeconds,
			DiskBytes:   p.DiskBytes,
			NetBytes:    p.NetBytes,
			MemoryBytes: p.RSSBytes,
			Timestamp:   p.ReadAt,
			Unreadable:  unreadable(p),
		})
	}
	return samples, nil
}

func unreadable(p services.ProcessCounters) Counter {
	var c Counter
	if p.CPUUnreadable {
		c |= CounterCPU
	}
	if p.DiskUnreadable {
		c |= CounterDisk
	}
	if p.NetUnreadable {
		c |= CounterNet
	}
	return c
}

// HostInfo collects the core counts, total memory and host identity
// concurrently. Only the CPU and memory reads are required; a failed
// identity lookup leaves those fields empty.
func (s *SystemCollector) HostInfo(ctx context.Context) (HostInfo, error) {
	var (
		cpuRes  services.CPUResult
		memRes  services.MemResult
		hostRes services.HostResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.cpuSensor.Collect(gctx)
		if err != nil {
			return fmt.Errorf("failed to get CPU metrics: %w", err)
		}
		cpuRes = res.(services.CPUResult)
		return nil
	})
	g.Go(func() error {
		res, err := s.memSensor.Collect(gctx)
		if err != nil {
			return fmt.Errorf("failed to get memory metrics: %w", err)
		}
		memRes = res.(services.MemResult)
		return nil
	})
	g.Go(func() error {
		if res, err := s.hostSensor.Collect(gctx); err == nil {
			hostRes = res.(services.HostResult)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return HostInfo{}, err
	}

	return HostInfo{
		Hostname:        hostRes.Hostname,
		OS:              hostRes.OS,
		Platform:        hostRes.Platform,
		PlatformVersion: hostRes.PlatformVersion,
		KernelVersion:   hostRes.KernelVersion,
		Arch:            hostRes.KernelArch,
		CPUModel:        cpuRes.Model,
		PhysicalCores:   cpuRes.PhysicalCores,
		LogicalCores:    cpuRes.LogicalCores,
		TotalMemory:     memRes.Total,
	}, nil
}
