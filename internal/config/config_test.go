package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"procwatch/internal/collector"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Expected default config valid, got %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
collector:
  cadence: 2s
  normalize_cpu: true
table:
  page_size: 25
  sort_column: cpu
  sort_direction: desc
  hidden_columns: [network]
publisher:
  stale_after: 5
history:
  enabled: true
  database:
    dsn: /tmp/procwatch.duckdb
  recorder:
    every: 10s
    retention: 1h
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Collector.Cadence != 2*time.Second || !cfg.Collector.NormalizeCPU {
		t.Errorf("Unexpected collector section %+v", cfg.Collector)
	}
	if cfg.Collector.QueryTimeout != collector.DefaultCollectorConfig().QueryTimeout {
		t.Errorf("Expected unset keys to keep defaults, got timeout %v", cfg.Collector.QueryTimeout)
	}
	if cfg.Table.PageSize != 25 || cfg.Table.SortColumn != "cpu" || cfg.Table.SortDirection != "desc" {
		t.Errorf("Unexpected table section %+v", cfg.Table)
	}
	if !slices.Equal(cfg.Table.HiddenColumns, []string{"network"}) {
		t.Errorf("Expected hidden [network], got %v", cfg.Table.HiddenColumns)
	}
	if cfg.Publisher.StaleAfter != 5 {
		t.Errorf("Expected stale_after 5, got %d", cfg.Publisher.StaleAfter)
	}
	if !cfg.History.Enabled || cfg.History.Database.DSN != "/tmp/procwatch.duckdb" {
		t.Errorf("Unexpected history section %+v", cfg.History)
	}
	if cfg.History.Recorder.Every != 10*time.Second || cfg.History.Recorder.Retention != time.Hour {
		t.Errorf("Unexpected recorder section %+v", cfg.History.Recorder)
	}
	if cfg.Thresholds.CPU.Critical != 90 {
		t.Errorf("Expected default thresholds kept, got %+v", cfg.Thresholds.CPU)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{name: "unknown key", doc: "colector:\n  cadence: 1s\n"},
		{name: "bad duration", doc: "collector:\n  cadence: soon\n"},
		{name: "zero cadence", doc: "collector:\n  cadence: 0s\n", field: "Cadence"},
		{name: "unknown column", doc: "table:\n  sort_column: threads\n", field: "SortColumn"},
		{name: "bad stale", doc: "publisher:\n  stale_after: 0\n", field: "StaleAfter"},
		{name: "bad thresholds", doc: "thresholds:\n  cpu:\n    warning: 95\n    critical: 90\n", field: "CPU"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.field == "" {
				return
			}
			var cfgErr *collector.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Expected ConfigError for %s, got %v", tt.field, err)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Table.PageSize != 10 {
		t.Errorf("Expected defaults, got page size %d", cfg.Table.PageSize)
	}
}

func TestWriteThenLoad(t *testing.T) {
	cfg := Default()
	cfg.Collector.Cadence = 3 * time.Second
	cfg.Table.HiddenColumns = []string{"disk"}

	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("cadence: 3s")) {
		t.Errorf("Expected durations written as strings, got:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "procwatch.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Collector.Cadence != 3*time.Second || !slices.Equal(loaded.Table.HiddenColumns, []string{"disk"}) {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	cfg, err := Load("")
	if err != nil || cfg.Table.PageSize != 10 {
		t.Errorf("Expected defaults for empty path, got %v", err)
	}
}
