package collector

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"procwatch/internal/collector/services"
)

// MockSource satisfies ProcessSource and HostInfoSource.
type MockSource struct {
	Samples   []RawSample
	Err       error
	Host      HostInfo
	HostErr   error
	HostCalls int
	HostBlock bool
	Block     bool
}

func (m *MockSource) QueryProcesses(ctx context.Context) ([]RawSample, error) {
	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]RawSample, len(m.Samples))
	copy(out, m.Samples)
	return out, nil
}

func (m *MockSource) HostInfo(ctx context.Context) (HostInfo, error) {
	m.HostCalls++
	if m.HostBlock {
		<-ctx.Done()
		return HostInfo{}, ctx.Err()
	}
	return m.Host, m.HostErr
}

func TestSamplerSample(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := &MockSource{
		Samples: []RawSample{
			{PID: 1, Name: "init", CPUSeconds: 2},
			{PID: 42, Name: "worker", CPUSeconds: 7, Timestamp: fixed.Add(-time.Millisecond)},
		},
		Host: HostInfo{LogicalCores: 4, TotalMemory: 8 << 30},
	}
	s := NewSampler(src, DefaultCollectorConfig())
	s.now = func() time.Time { return fixed }

	snap, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(snap.Samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(snap.Samples))
	}
	if !snap.TakenAt.Equal(fixed) {
		t.Errorf("Expected TakenAt %v, got %v", fixed, snap.TakenAt)
	}
	if !snap.Samples[0].Timestamp.Equal(fixed) {
		t.Errorf("Expected missing timestamp to default to TakenAt, got %v", snap.Samples[0].Timestamp)
	}
	if !snap.Samples[1].Timestamp.Equal(fixed.Add(-time.Millisecond)) {
		t.Errorf("Expected source timestamp to be kept, got %v", snap.Samples[1].Timestamp)
	}
	if snap.Cores != 4 || snap.TotalMemory != 8<<30 {
		t.Errorf("Expected host facts to be attached, got cores=%d mem=%d", snap.Cores, snap.TotalMemory)
	}

	if _, err := s.Sample(context.Background()); err != nil {
		t.Fatalf("Second sample failed: %v", err)
	}
	if src.HostCalls != 1 {
		t.Errorf("Expected host info to be fetched once, got %d calls", src.HostCalls)
	}
}

func TestSamplerAcquisitionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *MockSource
		cfg  CollectorConfig
	}{
		{
			name: "query fails",
			src:  &MockSource{Err: errors.New("permission denied")},
			cfg:  DefaultCollectorConfig(),
		},
		{
			name: "duplicate pid",
			src: &MockSource{Samples: []RawSample{
				{PID: 7, Name: "a"},
				{PID: 7, Name: "b"},
			}},
			cfg: DefaultCollectorConfig(),
		},
		{
			name: "query times out",
			src:  &MockSource{Block: true},
			cfg:  DefaultCollectorConfig().WithQueryTimeout(10 * time.Millisecond),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := NewSampler(tt.src, tt.cfg).Sample(context.Background())
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if !errors.Is(err, ErrAcquisition) {
				t.Errorf("Expected ErrAcquisition, got %v", err)
			}
			var acqErr *AcquisitionError
			if !errors.As(err, &acqErr) {
				t.Errorf("Expected *AcquisitionError, got %T", err)
			}
			if len(snap.Samples) != 0 {
				t.Errorf("Expected no partial snapshot, got %d samples", len(snap.Samples))
			}
		})
	}
}

func TestSamplerHostInfoFailureIsNotFatal(t *testing.T) {
	src := &MockSource{
		Samples: []RawSample{{PID: 1, Name: "init"}},
		HostErr: errors.New("no /proc/meminfo"),
	}
	snap, err := NewSampler(src, DefaultCollectorConfig()).Sample(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.Cores != 0 || snap.TotalMemory != 0 {
		t.Errorf("Expected zero host facts, got cores=%d mem=%d", snap.Cores, snap.TotalMemory)
	}
}

func TestSamplerRetriesHostInfoUntilSuccess(t *testing.T) {
	src := &MockSource{
		Samples: []RawSample{{PID: 1, Name: "init"}},
		HostErr: errors.New("transient"),
	}
	s := NewSampler(src, DefaultCollectorConfig())

	tests := []struct {
		name      string
		hostErr   error
		wantCores int
		wantCalls int
	}{
		{name: "first lookup fails", hostErr: errors.New("transient"), wantCores: 0, wantCalls: 1},
		{name: "second lookup succeeds", wantCores: 8, wantCalls: 2},
		{name: "cached afterwards", hostErr: errors.New("ignored"), wantCores: 8, wantCalls: 2},
	}

	for _, tt := range tests {
		src.HostErr = tt.hostErr
		src.Host = HostInfo{Hostname: "box", LogicalCores: 8, TotalMemory: 16 << 30}
		snap, err := s.Sample(context.Background())
		if err != nil {
			t.Fatalf("%s: Expected no error, got %v", tt.name, err)
		}
		if snap.Cores != tt.wantCores {
			t.Errorf("%s: Expected %d cores, got %d", tt.name, tt.wantCores, snap.Cores)
		}
		if src.HostCalls != tt.wantCalls {
			t.Errorf("%s: Expected %d host lookups, got %d", tt.name, tt.wantCalls, src.HostCalls)
		}
	}

	host, err := s.HostInfo(context.Background())
	if err != nil || host.Hostname != "box" {
		t.Errorf("Expected cached host box, got %+v (err %v)", host, err)
	}
}

func TestSamplerHostLookupHasOwnTimeout(t *testing.T) {
	src := &MockSource{
		Samples:   []RawSample{{PID: 1, Name: "init"}},
		HostBlock: true,
	}
	cfg := DefaultCollectorConfig().
		WithHostTimeout(20 * time.Millisecond).
		WithQueryTimeout(50 * time.Millisecond)

	snap, err := NewSampler(src, cfg).Sample(context.Background())
	if err != nil {
		t.Fatalf("Expected a slow host lookup not to starve the process query, got %v", err)
	}
	if len(snap.Samples) != 1 {
		t.Errorf("Expected 1 sample, got %d", len(snap.Samples))
	}
	if snap.Host.Known() {
		t.Errorf("Expected unknown host after a timed out lookup, got %+v", snap.Host)
	}
}

func TestSamplerHostInfoWithoutSource(t *testing.T) {
	s := NewSampler(processOnly{}, DefaultCollectorConfig())
	if _, err := s.HostInfo(context.Background()); !errors.Is(err, ErrNoHostInfo) {
		t.Errorf("Expected ErrNoHostInfo, got %v", err)
	}
}

type processOnly struct{}

func (processOnly) QueryProcesses(ctx context.Context) ([]RawSample, error) {
	return nil, nil
}

func TestSystemCollector(t *testing.T) {
	cfg := DefaultCollectorConfig()
	s := NewSampler(NewSystemCollector(cfg), cfg)

	snap, err := s.Sample(context.Background())
	if err != nil {
		t.Skipf("Skipping system test: %v (might be environment specific)", err)
	}
	if len(snap.Samples) == 0 {
		t.Fatal("Expected at least one process")
	}

	self := int32(os.Getpid())
	for _, rs := range snap.Samples {
		if rs.PID == self {
			if rs.CPUSeconds < 0 {
				t.Errorf("Expected non-negative CPU seconds, got %f", rs.CPUSeconds)
			}
			return
		}
	}
	t.Errorf("Expected the test process (pid %d) in the snapshot", self)
}

func TestSystemCollectorHostInfo(t *testing.T) {
	host, err := NewSystemCollector(DefaultCollectorConfig()).HostInfo(context.Background())
	if err != nil {
		t.Skipf("Skipping system test: %v (might be environment specific)", err)
	}
	if host.LogicalCores <= 0 {
		t.Errorf("Expected positive logical cores, got %d", host.LogicalCores)
	}
	if host.OS != "" && host.OS != runtime.GOOS {
		t.Errorf("Expected OS %s, got %s", runtime.GOOS, host.OS)
	}
}

func TestUnreadableMask(t *testing.T) {
	tests := []struct {
		name string
		in   services.ProcessCounters
		want Counter
	}{
		{name: "all readable", want: 0},
		{name: "disk denied", in: services.ProcessCounters{DiskUnreadable: true}, want: CounterDisk},
		{name: "cpu and net denied", in: services.ProcessCounters{CPUUnreadable: true, NetUnreadable: true}, want: CounterCPU | CounterNet},
	}
	for _, tt := range tests {
		if got := unreadable(tt.in); got != tt.want {
			t.Errorf("%s: Expected mask %03b, got %03b", tt.name, tt.want, got)
		}
	}
}
