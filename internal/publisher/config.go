package publisher

import "procwatch/internal/collector"

// Config controls how sampling failures surface in the published view.
type Config struct {
	StaleAfter int `yaml:"stale_after"` // Consecutive failures before the view is marked stale (default: 3)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{StaleAfter: 3}
}

// WithStaleAfter returns a copy of the config with a modified failure threshold.
func (c Config) WithStaleAfter(n int) Config {
	c.StaleAfter = n
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.StaleAfter < 1 {
		return &collector.ConfigError{Field: "StaleAfter", Message: "must be at least 1"}
	}
	return nil
}
