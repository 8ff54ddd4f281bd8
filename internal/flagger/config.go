package flagger

import "procwatch/internal/collector"

// Thresholds defines warning and critical levels for a metric. A value
// strictly above a level trips it.
type Thresholds struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

type Config struct {
	CPU     Thresholds `yaml:"cpu"`     // percent of one core
	Memory  Thresholds `yaml:"memory"`  // percent of total memory
	Disk    Thresholds `yaml:"disk"`    // MB/s
	Network Thresholds `yaml:"network"` // Mbps
}

func DefaultConfig() Config {
	return Config{
		CPU:     Thresholds{Warning: 70.0, Critical: 90.0},
		Memory:  Thresholds{Warning: 25.0, Critical: 50.0},
		Disk:    Thresholds{Warning: 50.0, Critical: 200.0},
		Network: Thresholds{Warning: 100.0, Critical: 500.0},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	for _, t := range []struct {
		field string
		th    Thresholds
	}{
		{"CPU", c.CPU},
		{"Memory", c.Memory},
		{"Disk", c.Disk},
		{"Network", c.Network},
	} {
		if t.th.Warning < 0 || t.th.Critical < 0 {
			return &collector.ConfigError{Field: t.field, Message: "thresholds must not be negative"}
		}
		if t.th.Warning > t.th.Critical {
			return &collector.ConfigError{Field: t.field, Message: "warning must not exceed critical"}
		}
	}
	return nil
}
