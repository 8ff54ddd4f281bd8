package engine

import (
	"slices"

	"procwatch/internal/collector"
)

// Config holds the initial table state. Column visibility, default sort and
// page size are the preferences a user may persist between sessions.
type Config struct {
	PageSize      int      `yaml:"page_size"`      // Rows per page (default: 10)
	SortColumn    string   `yaml:"sort_column"`    // Initial sort column (default: pid)
	SortDirection string   `yaml:"sort_direction"` // asc or desc (default: asc)
	HiddenColumns []string `yaml:"hidden_columns"` // Columns hidden at start-up
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:      10,
		SortColumn:    string(ColumnPID),
		SortDirection: string(Ascending),
	}
}

// WithPageSize returns a copy of the config with a modified page size.
func (c Config) WithPageSize(n int) Config {
	c.PageSize = n
	return c
}

// WithSort returns a copy of the config with a modified initial sort.
func (c Config) WithSort(column string, dir Direction) Config {
	c.SortColumn = column
	c.SortDirection = string(dir)
	return c
}

// WithHiddenColumns returns a copy of the config hiding the given columns.
func (c Config) WithHiddenColumns(cols ...string) Config {
	c.HiddenColumns = slices.Clone(cols)
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return &collector.ConfigError{Field: "PageSize", Message: "must be positive"}
	}
	if _, ok := LookupColumn(ColumnKey(c.SortColumn)); !ok {
		return &collector.ConfigError{Field: "SortColumn", Message: "must be one of name, pid, cpu, memory, disk, network"}
	}
	if d := Direction(c.SortDirection); d != Ascending && d != Descending {
		return &collector.ConfigError{Field: "SortDirection", Message: "must be asc or desc"}
	}
	for _, h := range c.HiddenColumns {
		if _, err := ParseColumn(h); err != nil {
			return &collector.ConfigError{Field: "HiddenColumns", Message: "contains unknown column " + h}
		}
	}
	return nil
}
