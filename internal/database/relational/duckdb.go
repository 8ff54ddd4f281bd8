package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver

	"procwatch/internal/collector"
)

// DatabaseClient defines the contract for database operations.
type DatabaseClient interface {
	DB() *sql.DB
	Close() error
	Configure(opts DatabaseConfig) error
	Ping(ctx context.Context) error
}

// DatabaseConfig holds configuration options for the history database.
type DatabaseConfig struct {
	DSN           string        `yaml:"dsn"`             // File path, or empty for in-memory
	Threads       int           `yaml:"threads"`         // Number of threads for DuckDB (0 = default)
	MemoryLimitGB int           `yaml:"memory_limit_gb"` // Memory limit in GB (0 = default)
	Timeout       time.Duration `yaml:"timeout"`         // Ping timeout (0 = no timeout)
}

// DefaultDatabaseConfig returns an in-memory configuration with DuckDB defaults.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Timeout: 5 * time.Second}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c DatabaseConfig) Validate() error {
	if c.Threads < 0 {
		return &collector.ConfigError{Field: "Threads", Message: "must not be negative"}
	}
	if c.MemoryLimitGB < 0 {
		return &collector.ConfigError{Field: "MemoryLimitGB", Message: "must not be negative"}
	}
	if c.Timeout < 0 {
		return &collector.ConfigError{Field: "Timeout", Message: "must not be negative"}
	}
	return nil
}

// Options turns the config into client options.
func (c DatabaseConfig) Options() []DuckDBOption {
	return []DuckDBOption{WithThreads(c.Threads), WithMemoryLimit(c.MemoryLimitGB), WithTimeout(c.Timeout)}
}

// DuckDBClient manages the physical connection to a DuckDB database.
type DuckDBClient struct {
	db     *sql.DB
	config DatabaseConfig
}

// DuckDBOption configures the DuckDB client.
type DuckDBOption func(*DuckDBClient)

// WithThreads sets the number of DuckDB threads.
func WithThreads(n int) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.Threads = n
	}
}

// WithMemoryLimit sets the DuckDB memory limit in GB.
func WithMemoryLimit(gb int) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.MemoryLimitGB = gb
	}
}

// WithTimeout bounds the connectivity check.
func WithTimeout(d time.Duration) DuckDBOption {
	return func(c *DuckDBClient) {
		c.config.Timeout = d
	}
}

// NewDuckDBClient opens dsn, or an in-memory database when dsn is empty
// or ":memory:".
func NewDuckDBClient(dsn string, opts ...DuckDBOption) (*DuckDBClient, error) {
	client := &DuckDBClient{}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if dsn == "" {
		dsn = ":memory:"
	}
	client.config.DSN = dsn

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	ctx := context.Background()
	if client.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.config.Timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	// One connection: an in-memory database is private to its connection,
	// and the recorder is the only writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	client.db = db
	if err := client.Configure(client.config); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure duckdb: %w", err)
	}
	return client, nil
}

// Open builds a client from a DatabaseConfig.
func Open(cfg DatabaseConfig) (*DuckDBClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewDuckDBClient(cfg.DSN, cfg.Options()...)
}

func (c *DuckDBClient) DB() *sql.DB {
	return c.db
}

func (c *DuckDBClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Configure applies threads and memory limit pragmas.
func (c *DuckDBClient) Configure(cfg DatabaseConfig) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if cfg.Threads > 0 {
		if _, err := c.db.Exec(fmt.Sprintf("PRAGMA threads=%d", cfg.Threads)); err != nil {
			return fmt.Errorf("setting threads: %w", err)
		}
	}
	if cfg.MemoryLimitGB > 0 {
		if _, err := c.db.Exec(fmt.Sprintf("PRAGMA memory_limit='%dGB'", cfg.MemoryLimitGB)); err != nil {
			return fmt.Errorf("setting memory limit: %w", err)
		}
	}
	c.config = cfg
	return nil
}

func (c *DuckDBClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// NewInMemoryDB creates a new in-memory DuckDB database.
func NewInMemoryDB(opts ...DuckDBOption) (*DuckDBClient, error) {
	return NewDuckDBClient(":memory:", opts...)
}

// NewFileDB creates a new file-based DuckDB database.
func NewFileDB(path string, opts ...DuckDBOption) (*DuckDBClient, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	return NewDuckDBClient(path, opts...)
}
