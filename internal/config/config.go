// Package config loads the procwatch YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"procwatch/internal/collector"
	"procwatch/internal/database"
	"procwatch/internal/database/relational"
	"procwatch/internal/engine"
	"procwatch/internal/flagger"
	"procwatch/internal/mcpserver"
	"procwatch/internal/publisher"
)

// Config is the whole configuration document. Durations are written as Go
// duration strings such as "1s" or "24h".
type Config struct {
	Collector  collector.CollectorConfig `yaml:"collector"`
	Table      engine.Config             `yaml:"table"`
	Publisher  publisher.Config          `yaml:"publisher"`
	Thresholds flagger.Config            `yaml:"thresholds"`
	History    HistoryConfig             `yaml:"history"`
	MCP        mcpserver.Config          `yaml:"mcp"`
}

// HistoryConfig enables tick recording to DuckDB.
type HistoryConfig struct {
	Enabled  bool                      `yaml:"enabled"`
	Database relational.DatabaseConfig `yaml:"database"`
	Recorder database.RecorderConfig   `yaml:"recorder"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Collector:  collector.DefaultCollectorConfig(),
		Table:      engine.DefaultConfig(),
		Publisher:  publisher.DefaultConfig(),
		Thresholds: flagger.DefaultConfig(),
		History: HistoryConfig{
			Database: relational.DefaultDatabaseConfig(),
			Recorder: database.DefaultRecorderConfig(),
		},
		MCP: mcpserver.DefaultConfig(),
	}
}

// Validate checks every section and names the failing one.
func (c Config) Validate() error {
	sections := []struct {
		name string
		err  error
	}{
		{"collector", c.Collector.Validate()},
		{"table", c.Table.Validate()},
		{"publisher", c.Publisher.Validate()},
		{"thresholds", c.Thresholds.Validate()},
		{"history.database", c.History.Database.Validate()},
		{"history.recorder", c.History.Recorder.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			return fmt.Errorf("%s: %w", s.name, s.err)
		}
	}
	return nil
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes cfg as YAML.
func Write(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
