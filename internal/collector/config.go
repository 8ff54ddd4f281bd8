package collector

import "time"

// CollectorConfig contains configurable parameters for process sampling.
// Use DefaultCollectorConfig() to get sensible defaults, then override as needed.
type CollectorConfig struct {
	// Timing
	Cadence      time.Duration `yaml:"cadence"`       // Interval between sampling ticks (default: 1s)
	QueryTimeout time.Duration `yaml:"query_timeout"` // Upper bound for one process query (default: 3s)
	HostTimeout  time.Duration `yaml:"host_timeout"`  // Upper bound for one host info lookup (default: 2s)

	// Acquisition
	Workers        int  `yaml:"workers"`         // Processes read concurrently (default: 8)
	ProcessNetwork bool `yaml:"process_network"` // Read per-process network counters (default: false)

	// Derivation
	NormalizeCPU bool `yaml:"normalize_cpu"` // Divide CPU% by logical cores (default: false)
}

// DefaultCollectorConfig returns a CollectorConfig with sensible defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Cadence:      1 * time.Second,
		QueryTimeout: 3 * time.Second,
		HostTimeout:  2 * time.Second,

		Workers:        8,
		ProcessNetwork: false,

		NormalizeCPU: false,
	}
}

// WithCadence returns a copy of the config with a modified sampling cadence.
func (c CollectorConfig) WithCadence(d time.Duration) CollectorConfig {
	c.Cadence = d
	return c
}

// WithQueryTimeout returns a copy of the config with a modified query timeout.
func (c CollectorConfig) WithQueryTimeout(d time.Duration) CollectorConfig {
	c.QueryTimeout = d
	return c
}

// WithHostTimeout returns a copy of the config with a modified host info timeout.
func (c CollectorConfig) WithHostTimeout(d time.Duration) CollectorConfig {
	c.HostTimeout = d
	return c
}

// WithWorkers returns a copy of the config with a modified worker count.
func (c CollectorConfig) WithWorkers(n int) CollectorConfig {
	c.Workers = n
	return c
}

// WithProcessNetwork returns a copy of the config with per-process network counters enabled/disabled.
func (c CollectorConfig) WithProcessNetwork(enabled bool) CollectorConfig {
	c.ProcessNetwork = enabled
	return c
}

// WithNormalizeCPU returns a copy of the config with per-core CPU normalisation enabled/disabled.
func (c CollectorConfig) WithNormalizeCPU(enabled bool) CollectorConfig {
	c.NormalizeCPU = enabled
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c CollectorConfig) Validate() error {
	if c.Cadence <= 0 {
		return &ConfigError{Field: "Cadence", Message: "must be positive"}
	}
	if c.QueryTimeout <= 0 {
		return &ConfigError{Field: "QueryTimeout", Message: "must be positive"}
	}
	if c.HostTimeout <= 0 {
		return &ConfigError{Field: "HostTimeout", Message: "must be positive"}
	}
	if c.Workers <= 0 {
		return &ConfigError{Field: "Workers", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
