package mcpserver

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"procwatch/internal/collector"
	"procwatch/internal/database/relational"
	"procwatch/internal/engine"
	"procwatch/internal/flagger"
	"procwatch/internal/rates"
)

// MockViewSource serves views from a real engine without sampling.
type MockViewSource struct {
	eng        *engine.Engine
	at         time.Time
	host       collector.HostInfo
	dispatches int
}

func newMockViewSource(t *testing.T, records ...rates.ProcessRecord) *MockViewSource {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng.SetRecords(records)
	return &MockViewSource{eng: eng, at: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)}
}

func (m *MockViewSource) CurrentView() engine.View {
	v := m.eng.View()
	v.UpdatedAt = m.at
	return v
}

func (m *MockViewSource) Host() collector.HostInfo {
	return m.host
}

func (m *MockViewSource) Dispatch(ev engine.Event) (engine.View, error) {
	m.dispatches++
	v, err := m.eng.Dispatch(ev)
	v.UpdatedAt = m.at
	return v, err
}

// MockHistoryStore implements HistoryStore for testing
type MockHistoryStore struct {
	Points    []relational.ProcessHistoryPoint
	Top       []relational.ProcessAggregate
	Ticks     []relational.TickSummary
	Err       error
	GotPID    int32
	GotLimit  int
	GotMetric string
	GotSince  time.Time
}

func (m *MockHistoryStore) QueryProcessHistory(ctx context.Context, pid int32, limit int) ([]relational.ProcessHistoryPoint, error) {
	m.GotPID, m.GotLimit = pid, limit
	return m.Points, m.Err
}

func (m *MockHistoryStore) QueryTopProcesses(ctx context.Context, metric string, since time.Time, limit int) ([]relational.ProcessAggregate, error) {
	m.GotMetric, m.GotSince, m.GotLimit = metric, since, limit
	return m.Top, m.Err
}

func (m *MockHistoryStore) QueryTicks(ctx context.Context, limit int) ([]relational.TickSummary, error) {
	m.GotLimit = limit
	return m.Ticks, m.Err
}

func sampleRecords() []rates.ProcessRecord {
	return []rates.ProcessRecord{
		{PID: 1, Name: "a", CPUPercent: 10},
		{PID: 2, Name: "b", CPUPercent: 30},
		{PID: 3, Name: "c", CPUPercent: 20},
	}
}

func newTestServer(t *testing.T, history HistoryStore) *Server {
	t.Helper()
	return newTestServerWithView(t, newMockViewSource(t, sampleRecords()...), history)
}

func newTestServerWithView(t *testing.T, view *MockViewSource, history HistoryStore) *Server {
	t.Helper()
	s, err := NewServer(DefaultConfig(), view, history, flagger.NewFlaggerService(flagger.DefaultConfig()), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func rowPIDs(r ViewResult) []int32 {
	out := make([]int32, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.PID
	}
	return out
}

func TestNewServerRequiresViewSource(t *testing.T) {
	if _, err := NewServer(DefaultConfig(), nil, nil, nil, nil); err == nil {
		t.Error("Expected error for nil view source")
	}
}

func TestHandleGetView(t *testing.T) {
	s := newTestServer(t, nil)

	_, result, err := s.handleGetView(context.Background(), nil, EmptyArgs{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.TotalRows != 3 || len(result.Rows) != 3 {
		t.Errorf("Expected 3 rows, got %d", len(result.Rows))
	}
	if result.Page != 1 || result.TotalPages != 1 || result.PageSize != 10 {
		t.Errorf("Expected page 1 of 1 with size 10, got %d of %d size %d", result.Page, result.TotalPages, result.PageSize)
	}
	if result.SortColumn != "pid" || result.SortDirection != "asc" {
		t.Errorf("Expected default pid asc sort, got %s %s", result.SortColumn, result.SortDirection)
	}
	if result.UpdatedAt != "2026-07-01T09:30:00Z" {
		t.Errorf("Expected RFC 3339 update time, got %q", result.UpdatedAt)
	}
	if result.Footer != "0 of 3 row(s) selected." {
		t.Errorf("Unexpected footer %q", result.Footer)
	}
	if len(result.Columns) != 6 {
		t.Errorf("Expected all 6 columns listed, got %d", len(result.Columns))
	}
	if result.Rows[0].Status != "OK" {
		t.Errorf("Expected OK status, got %s", result.Rows[0].Status)
	}
}

func TestHandleSortThenFilter(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	s.handleToggleSort(ctx, nil, ColumnArgs{Column: "cpu"})
	_, result, err := s.handleToggleSort(ctx, nil, ColumnArgs{Column: "CPU"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := rowPIDs(result); !slices.Equal(got, []int32{2, 3, 1}) {
		t.Errorf("Expected [2 3 1], got %v", got)
	}

	_, result, err = s.handleSetFilter(ctx, nil, SetFilterArgs{Text: "b"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := rowPIDs(result); !slices.Equal(got, []int32{2}) || result.FilteredRows != 1 || result.Page != 1 {
		t.Errorf("Expected only pid 2 on page 1, got %v page %d", got, result.Page)
	}
}

func TestHandleUnknownColumn(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	if _, _, err := s.handleToggleSort(ctx, nil, ColumnArgs{Column: "threads"}); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	if _, _, err := s.handleToggleColumn(ctx, nil, ColumnArgs{Column: ""}); !errors.Is(err, engine.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	_, result, _ := s.handleGetView(ctx, nil, EmptyArgs{})
	if result.SortColumn != "pid" {
		t.Errorf("Expected unchanged sort, got %s", result.SortColumn)
	}
}

func TestHandleSetPage(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, result, err := s.handleSetPage(ctx, nil, SetPageArgs{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Page != 2 || result.TotalPages != 2 || !slices.Equal(rowPIDs(result), []int32{3}) {
		t.Errorf("Expected page 2 of 2 with pid 3, got page %d of %d rows %v", result.Page, result.TotalPages, rowPIDs(result))
	}

	_, result, _ = s.handleSetPage(ctx, nil, SetPageArgs{Page: 40})
	if result.Page != 2 {
		t.Errorf("Expected clamped to page 2, got %d", result.Page)
	}

	if _, _, err := s.handleSetPage(ctx, nil, SetPageArgs{Page: 1, PageSize: -3}); err == nil {
		t.Error("Expected error for negative page size")
	}
}

func TestHandleSetPageIsOneTransition(t *testing.T) {
	tests := []struct {
		name     string
		args     SetPageArgs
		wantErr  bool
		wantPage int
		wantSize int
	}{
		{name: "page and size", args: SetPageArgs{Page: 3, PageSize: 1}, wantPage: 3, wantSize: 1},
		{name: "page only", args: SetPageArgs{Page: 1}, wantPage: 1, wantSize: 10},
		{name: "rejected size", args: SetPageArgs{Page: 2, PageSize: -1}, wantErr: true, wantPage: 1, wantSize: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := newMockViewSource(t, sampleRecords()...)
			s := newTestServerWithView(t, view, nil)

			_, _, err := s.handleSetPage(context.Background(), nil, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if view.dispatches != 1 {
				t.Errorf("Expected exactly 1 dispatch, got %d", view.dispatches)
			}
			_, cur, _ := s.handleGetView(context.Background(), nil, EmptyArgs{})
			if cur.Page != tt.wantPage || cur.PageSize != tt.wantSize {
				t.Errorf("Expected page %d size %d, got page %d size %d", tt.wantPage, tt.wantSize, cur.Page, cur.PageSize)
			}
		})
	}
}

func TestHandleGetHostInfo(t *testing.T) {
	view := newMockViewSource(t)
	s := newTestServerWithView(t, view, nil)

	_, result, err := s.handleGetHostInfo(context.Background(), nil, EmptyArgs{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Known {
		t.Errorf("Expected unknown host before any lookup, got %+v", result)
	}

	view.host = collector.HostInfo{Hostname: "web-3", OS: "linux", KernelVersion: "6.8.0", Arch: "x86_64", LogicalCores: 16, TotalMemory: 64 << 30}
	_, result, _ = s.handleGetHostInfo(context.Background(), nil, EmptyArgs{})
	if !result.Known || result.Host.Hostname != "web-3" || result.Host.LogicalCores != 16 {
		t.Errorf("Expected web-3 with 16 cores, got %+v", result)
	}
}

func TestHandleGetRecentTicks(t *testing.T) {
	store := &MockHistoryStore{Ticks: []relational.TickSummary{{TickID: 9, ProcessCount: 120, FlaggedCount: 2}}}
	s := newTestServer(t, store)

	_, result, err := s.handleGetRecentTicks(context.Background(), nil, RecentTicksArgs{Limit: 3})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.GotLimit != 3 {
		t.Errorf("Expected limit 3 passed through, got %d", store.GotLimit)
	}
	if len(result.Ticks) != 1 || result.Ticks[0].FlaggedCount != 2 {
		t.Errorf("Unexpected ticks %+v", result.Ticks)
	}

	store.Err = errors.New("database is locked")
	if _, _, err := s.handleGetRecentTicks(context.Background(), nil, RecentTicksArgs{}); err == nil {
		t.Error("Expected error when store fails")
	}
}

func TestHandleSelection(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	s.handleToggleSelection(ctx, nil, SelectionArgs{PID: 3})
	_, result, err := s.handleToggleSelection(ctx, nil, SelectionArgs{PID: 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !slices.Equal(result.SelectedPIDs, []int32{1, 3}) || result.SelectedRows != 2 {
		t.Errorf("Expected selection [1 3], got %v", result.SelectedPIDs)
	}
	if !result.Rows[0].Selected || result.Rows[1].Selected {
		t.Errorf("Expected row flags to match selection")
	}
	if result.Footer != "2 of 3 row(s) selected." {
		t.Errorf("Unexpected footer %q", result.Footer)
	}

	_, result, _ = s.handleClearSelection(ctx, nil, EmptyArgs{})
	if len(result.SelectedPIDs) != 0 {
		t.Errorf("Expected empty selection, got %v", result.SelectedPIDs)
	}
}

func TestHandleToggleColumn(t *testing.T) {
	s := newTestServer(t, nil)

	_, result, err := s.handleToggleColumn(context.Background(), nil, ColumnArgs{Column: "network"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, c := range result.Columns {
		if c.Hidden != (c.Key == "network") {
			t.Errorf("Column %s hidden=%v", c.Key, c.Hidden)
		}
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	if _, _, err := s.handleGetProcessHistory(ctx, nil, ProcessHistoryArgs{PID: 1}); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("Expected ErrHistoryDisabled, got %v", err)
	}
	if _, _, err := s.handleGetTopProcesses(ctx, nil, TopProcessesArgs{}); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("Expected ErrHistoryDisabled, got %v", err)
	}
	if _, _, err := s.handleGetRecentTicks(ctx, nil, RecentTicksArgs{}); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("Expected ErrHistoryDisabled, got %v", err)
	}
}

func TestHandleGetProcessHistory(t *testing.T) {
	store := &MockHistoryStore{
		Points: []relational.ProcessHistoryPoint{{PID: 42, Name: "redis", CPUPercent: 12}},
	}
	s := newTestServer(t, store)

	_, result, err := s.handleGetProcessHistory(context.Background(), nil, ProcessHistoryArgs{PID: 42, Limit: 5})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.GotPID != 42 || store.GotLimit != 5 {
		t.Errorf("Expected pid 42 limit 5 passed through, got %d %d", store.GotPID, store.GotLimit)
	}
	if len(result.Points) != 1 || result.Points[0].Name != "redis" {
		t.Errorf("Unexpected points %+v", result.Points)
	}

	store.Err = errors.New("database is locked")
	if _, _, err := s.handleGetProcessHistory(context.Background(), nil, ProcessHistoryArgs{PID: 42}); err == nil {
		t.Error("Expected error when store fails")
	}
}

func TestHandleGetTopProcessesDefaults(t *testing.T) {
	store := &MockHistoryStore{Top: []relational.ProcessAggregate{{Name: "java", AvgCPUPercent: 80}}}
	s := newTestServer(t, store)

	before := time.Now()
	_, result, err := s.handleGetTopProcesses(context.Background(), nil, TopProcessesArgs{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.GotMetric != "cpu" {
		t.Errorf("Expected default metric cpu, got %q", store.GotMetric)
	}
	if d := before.Sub(store.GotSince); d < 14*time.Minute || d > 16*time.Minute {
		t.Errorf("Expected a 15 minute window, got %v", d)
	}
	if len(result.Processes) != 1 || result.Processes[0].Name != "java" {
		t.Errorf("Unexpected processes %+v", result.Processes)
	}
}
