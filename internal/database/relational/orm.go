// Package relational stores sampling ticks and per-process rows in DuckDB.
//
// Notes:
//   - DuckDB is columnar and suits append-only fact tables.
//   - Every tick gets one row in ticks and one row per live process in
//     process_samples. Process names live in a dimension table so repeated
//     names are stored once.
//
// Driver: github.com/marcboeker/go-duckdb
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"procwatch/internal/output"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
  session_id         BIGINT PRIMARY KEY,
  hostname           VARCHAR,
  logical_cores      INTEGER,
  total_memory_bytes BIGINT,
  started_at         TIMESTAMP NOT NULL DEFAULT now()
);

ALTER TABLE sessions ADD COLUMN IF NOT EXISTS os VARCHAR;
ALTER TABLE sessions ADD COLUMN IF NOT EXISTS platform VARCHAR;
ALTER TABLE sessions ADD COLUMN IF NOT EXISTS kernel_version VARCHAR;
ALTER TABLE sessions ADD COLUMN IF NOT EXISTS arch VARCHAR;
ALTER TABLE sessions ADD COLUMN IF NOT EXISTS cpu_model VARCHAR;

CREATE TABLE IF NOT EXISTS process_names (
  process_name_id BIGINT PRIMARY KEY,
  name            VARCHAR NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS ticks (
  tick_id        BIGINT PRIMARY KEY,
  session_id     BIGINT NOT NULL,
  collected_at   TIMESTAMP NOT NULL,
  process_count  INTEGER NOT NULL,
  flagged_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS process_samples (
  tick_id          BIGINT NOT NULL,
  pid              INTEGER NOT NULL,
  process_name_id  BIGINT NOT NULL,
  cpu_pct          DOUBLE,
  mem_bytes        BIGINT,
  mem_pct          DOUBLE,
  disk_mbps        DOUBLE,
  net_mbps         DOUBLE,
  severity_level   INTEGER,
  status           VARCHAR,
  explanation      VARCHAR,
  PRIMARY KEY (tick_id, pid)
);

CREATE INDEX IF NOT EXISTS idx_ticks_collected_at ON ticks(collected_at);
CREATE INDEX IF NOT EXISTS idx_process_samples_pid ON process_samples(pid);
`

type Repo struct {
	db *sql.DB
	mu sync.RWMutex
	// In-memory cache of process_names to reduce DB round-trips
	procName map[string]int64
}

// Session describes the host a recording run was taken on.
type Session struct {
	Hostname      string
	OS            string
	Platform      string
	KernelVersion string
	Arch          string
	CPUModel      string
	Cores         int
	TotalMemory   uint64
}

// InsertResult reports what InsertTick wrote.
type InsertResult struct {
	TickID int64
	Rows   int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{
		db:       db,
		procName: make(map[string]int64),
	}
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, SchemaSQL)
	return err
}

var lastID atomic.Int64

// NewID generates a unique, increasing, time-based ID.
func NewID() int64 {
	for {
		prev := lastID.Load()
		id := max(time.Now().UnixNano(), prev+1)
		if lastID.CompareAndSwap(prev, id) {
			return id
		}
	}
}

// StartSession records the host facts for a new recording run.
func (r *Repo) StartSession(ctx context.Context, s Session) (int64, error) {
	id := NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, hostname, os, platform, kernel_version, arch, cpu_model, logical_cores, total_memory_bytes)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		id, nullStr(s.Hostname), nullStr(s.OS), nullStr(s.Platform), nullStr(s.KernelVersion),
		nullStr(s.Arch), nullStr(s.CPUModel), s.Cores, nullUInt64(s.TotalMemory))
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// InsertTick persists one tick and all of its process rows in a single
// transaction.
func (r *Repo) InsertTick(ctx context.Context, sessionID int64, p output.TickPayload) (InsertResult, error) {
	if p.At.IsZero() {
		return InsertResult{}, errors.New("tick time required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	flagged := 0
	for _, rec := range p.Records {
		if p.Severity(rec.PID) > 0 {
			flagged++
		}
	}

	tickID := NewID()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ticks(tick_id, session_id, collected_at, process_count, flagged_count) VALUES(?,?,?,?,?)`,
		tickID, sessionID, p.At.UTC(), len(p.Records), flagged)
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert tick: %w", err)
	}

	// Names inserted by this transaction are cached only after commit.
	pending := make(map[string]int64)
	if len(p.Records) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO process_samples(
			  tick_id, pid, process_name_id,
			  cpu_pct, mem_bytes, mem_pct, disk_mbps, net_mbps,
			  severity_level, status, explanation
			) VALUES (?,?,?, ?,?,?,?,?, ?,?,?)`)
		if err != nil {
			return InsertResult{}, err
		}
		defer stmt.Close()

		for _, rec := range p.Records {
			nameID, err := r.upsertProcessNameTx(ctx, tx, rec.Name, pending)
			if err != nil {
				return InsertResult{}, fmt.Errorf("process name %q: %w", rec.Name, err)
			}
			f := p.Flags[rec.PID]
			_, err = stmt.ExecContext(ctx,
				tickID, rec.PID, nameID,
				nullFloat(rec.CPUPercent), nullUInt64(rec.MemoryBytes), nullFloat(rec.MemoryPercent),
				nullFloat(rec.DiskMBps), nullFloat(rec.NetworkMbps),
				f.SeverityLevel, string(p.Status(rec.PID)), nullStr(f.Explanation),
			)
			if err != nil {
				return InsertResult{}, fmt.Errorf("insert process %d: %w", rec.PID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, err
	}
	for name, id := range pending {
		r.remember(name, id)
	}
	return InsertResult{TickID: tickID, Rows: len(p.Records)}, nil
}

// Prune deletes ticks collected before cutoff and their process rows.
func (r *Repo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	cutoff = cutoff.UTC()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM process_samples WHERE tick_id IN (SELECT tick_id FROM ticks WHERE collected_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("prune process samples: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM ticks WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ticks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func (r *Repo) upsertProcessNameTx(ctx context.Context, tx *sql.Tx, name string, pending map[string]int64) (int64, error) {
	r.mu.RLock()
	if id, ok := r.procName[name]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()
	if id, ok := pending[name]; ok {
		return id, nil
	}

	const sel = `SELECT process_name_id FROM process_names WHERE name=?`
	var id int64
	err := tx.QueryRowContext(ctx, sel, name).Scan(&id)
	if err == nil {
		r.remember(name, id)
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	id = NewID()
	if _, err := tx.ExecContext(ctx, `INSERT INTO process_names(process_name_id, name) VALUES(?,?)`, id, name); err != nil {
		return 0, err
	}
	pending[name] = id
	return id, nil
}

func (r *Repo) remember(name string, id int64) {
	r.mu.Lock()
	r.procName[name] = id
	r.mu.Unlock()
}

// Null helpers
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullUInt64(v uint64) sql.NullInt64 {
	if v > math.MaxInt64 {
		v = math.MaxInt64
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}
