package engine

import (
	"errors"
	"slices"
	"testing"

	"procwatch/internal/rates"
)

func mustState(t *testing.T, cfg Config) State {
	t.Helper()
	s, err := NewState(cfg)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func mustApply(t *testing.T, s State, ev Event) State {
	t.Helper()
	next, err := Apply(s, ev)
	if err != nil {
		t.Fatalf("Apply(%T): %v", ev, err)
	}
	return next
}

func TestApplyToggleSort(t *testing.T) {
	tests := []struct {
		name    string
		start   Config
		column  ColumnKey
		wantCol ColumnKey
		wantDir Direction
	}{
		{
			name:    "same column flips ascending to descending",
			start:   DefaultConfig().WithSort("cpu", Ascending),
			column:  ColumnCPU,
			wantCol: ColumnCPU,
			wantDir: Descending,
		},
		{
			name:    "same column flips descending to ascending",
			start:   DefaultConfig().WithSort("cpu", Descending),
			column:  ColumnCPU,
			wantCol: ColumnCPU,
			wantDir: Ascending,
		},
		{
			name:    "new column starts ascending",
			start:   DefaultConfig().WithSort("cpu", Descending),
			column:  ColumnName,
			wantCol: ColumnName,
			wantDir: Ascending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustApply(t, mustState(t, tt.start), ToggleSort{Column: tt.column})
			if s.SortColumn != tt.wantCol || s.SortDirection != tt.wantDir {
				t.Errorf("Expected %s/%s, got %s/%s", tt.wantCol, tt.wantDir, s.SortColumn, s.SortDirection)
			}
		})
	}
}

func TestApplyUnknownColumnIsHardError(t *testing.T) {
	s := mustState(t, DefaultConfig())

	for _, ev := range []Event{ToggleSort{Column: "threads"}, ToggleColumn{Column: ""}} {
		next, err := Apply(s, ev)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%T: expected ErrInvalidTransition, got %v", ev, err)
		}
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Errorf("%T: expected *TransitionError, got %T", ev, err)
		}
		if next.SortColumn != s.SortColumn || next.SortDirection != s.SortDirection {
			t.Errorf("%T: state changed on error", ev)
		}
	}

	if _, err := Apply(s, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("nil event: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := Apply(s, SetPageSize{Size: 0}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("zero page size: expected ErrInvalidTransition, got %v", err)
	}
}

func TestApplyFilterResetsPage(t *testing.T) {
	s := mustState(t, DefaultConfig())
	s = mustApply(t, s, SetPage{Page: 3})
	s = mustApply(t, s, SetFilter{Text: "sh"})
	if s.Page != 0 {
		t.Errorf("Expected page 0 after filter change, got %d", s.Page)
	}
	if s.FilterText != "sh" {
		t.Errorf("Expected filter text sh, got %q", s.FilterText)
	}
}

func TestApplyPageNavigation(t *testing.T) {
	s := mustState(t, DefaultConfig())

	s = mustApply(t, s, SetPage{Page: -4})
	if s.Page != 0 {
		t.Errorf("Expected negative page clamped to 0, got %d", s.Page)
	}
	s = mustApply(t, s, PrevPage{})
	if s.Page != 0 {
		t.Errorf("Expected PrevPage at 0 to stay at 0, got %d", s.Page)
	}
	s = mustApply(t, s, NextPage{})
	s = mustApply(t, s, NextPage{})
	if s.Page != 2 {
		t.Errorf("Expected page 2, got %d", s.Page)
	}
}

func TestApplySetPageSizeKeepsFirstRow(t *testing.T) {
	s := mustState(t, DefaultConfig().WithPageSize(10))
	s = mustApply(t, s, SetPage{Page: 3}) // rows 30..39
	s = mustApply(t, s, SetPageSize{Size: 25})
	if s.PageSize != 25 || s.Page != 1 {
		t.Errorf("Expected page 1 of size 25, got page %d size %d", s.Page, s.PageSize)
	}
}

func TestApplySetPageWithSize(t *testing.T) {
	tests := []struct {
		name     string
		ev       SetPage
		wantPage int
		wantSize int
		wantErr  bool
	}{
		{name: "page only", ev: SetPage{Page: 2}, wantPage: 2, wantSize: 10},
		{name: "page and size", ev: SetPage{Page: 4, Size: 5}, wantPage: 4, wantSize: 5},
		{name: "negative size", ev: SetPage{Page: 1, Size: -5}, wantPage: 3, wantSize: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustState(t, DefaultConfig().WithPageSize(10))
			s = mustApply(t, s, SetPage{Page: 3})
			got, err := Apply(s, tt.ev)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Expected ErrInvalidTransition, got %v", err)
				}
				got = s
			} else if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got.Page != tt.wantPage || got.PageSize != tt.wantSize {
				t.Errorf("Expected page %d size %d, got page %d size %d", tt.wantPage, tt.wantSize, got.Page, got.PageSize)
			}
		})
	}
}

func TestApplySelectionDoesNotAlias(t *testing.T) {
	base := mustState(t, DefaultConfig())
	one := mustApply(t, base, ToggleSelection{PID: 7})
	two := mustApply(t, one, ToggleSelection{PID: 8})

	if base.IsSelected(7) {
		t.Error("Apply mutated the original state")
	}
	if one.IsSelected(8) {
		t.Error("Apply mutated an intermediate state")
	}
	if !slices.Equal(two.Selected(), []int32{7, 8}) {
		t.Errorf("Expected selection [7 8], got %v", two.Selected())
	}

	three := mustApply(t, two, ToggleSelection{PID: 7})
	if !slices.Equal(three.Selected(), []int32{8}) {
		t.Errorf("Expected selection [8] after deselect, got %v", three.Selected())
	}

	bulk := mustApply(t, three, SetSelection{PIDs: []int32{1, 2, 3}, Selected: true})
	bulk = mustApply(t, bulk, SetSelection{PIDs: []int32{2}, Selected: false})
	if !slices.Equal(bulk.Selected(), []int32{1, 3, 8}) {
		t.Errorf("Expected selection [1 3 8], got %v", bulk.Selected())
	}

	cleared := mustApply(t, bulk, ClearSelection{})
	if len(cleared.Selected()) != 0 || len(bulk.Selected()) != 3 {
		t.Errorf("ClearSelection should only affect the returned state")
	}
}

func TestApplyToggleColumn(t *testing.T) {
	s := mustState(t, DefaultConfig().WithSort("cpu", Descending))
	s = mustApply(t, s, SetFilter{Text: "x"})
	s = mustApply(t, s, NextPage{})

	hidden := mustApply(t, s, ToggleColumn{Column: ColumnCPU})
	if !hidden.IsHidden(ColumnCPU) {
		t.Fatal("Expected cpu to be hidden")
	}
	if hidden.SortColumn != ColumnCPU || hidden.SortDirection != Descending || hidden.FilterText != "x" || hidden.Page != 1 {
		t.Errorf("Column visibility must not touch sort/filter/page, got %+v", hidden)
	}

	shown := mustApply(t, hidden, ToggleColumn{Column: ColumnCPU})
	if shown.IsHidden(ColumnCPU) {
		t.Error("Expected cpu to be visible again")
	}
	if !hidden.IsHidden(ColumnCPU) {
		t.Error("ToggleColumn mutated the previous state")
	}
}

func TestReconcilePrunesExitedSelection(t *testing.T) {
	s := mustState(t, DefaultConfig())
	s = mustApply(t, s, SetSelection{PIDs: []int32{1, 2, 3}, Selected: true})

	next := Reconcile(s, []rates.ProcessRecord{{PID: 1}, {PID: 3}, {PID: 4}})
	if !slices.Equal(next.Selected(), []int32{1, 3}) {
		t.Errorf("Expected selection [1 3], got %v", next.Selected())
	}
	if !slices.Equal(s.Selected(), []int32{1, 2, 3}) {
		t.Error("Reconcile mutated its input")
	}
}

func TestNewStateFromConfig(t *testing.T) {
	s := mustState(t, DefaultConfig().WithHiddenColumns("Network", "disk"))
	if !s.IsHidden(ColumnNetwork) || !s.IsHidden(ColumnDisk) {
		t.Errorf("Expected network and disk hidden, got %v", s.HiddenColumns())
	}
	if s.SortColumn != ColumnPID || s.SortDirection != Ascending || s.PageSize != 10 {
		t.Errorf("Unexpected defaults: %+v", s)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "zero page size", cfg: DefaultConfig().WithPageSize(0), wantErr: true},
		{name: "unknown sort column", cfg: DefaultConfig().WithSort("threads", Ascending), wantErr: true},
		{name: "bad direction", cfg: DefaultConfig().WithSort("cpu", Direction("up")), wantErr: true},
		{name: "unknown hidden column", cfg: DefaultConfig().WithHiddenColumns("gpu"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
