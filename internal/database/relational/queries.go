package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 100
)

// ProcessHistoryPoint is one recorded tick for one PID.
type ProcessHistoryPoint struct {
	CollectedAt   time.Time `json:"collected_at"`
	PID           int32     `json:"pid"`
	Name          string    `json:"name"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryBytes   int64     `json:"memory_bytes"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskMBps      float64   `json:"disk_mbps"`
	NetworkMbps   float64   `json:"network_mbps"`
	Status        string    `json:"status"`
	Explanation   string    `json:"explanation"`
}

// ProcessAggregate summarises a process name over a time window.
type ProcessAggregate struct {
	Name           string  `json:"name"`
	PIDs           int64   `json:"pids"`
	Samples        int64   `json:"samples"`
	AvgCPUPercent  float64 `json:"avg_cpu_percent"`
	MaxCPUPercent  float64 `json:"max_cpu_percent"`
	AvgMemoryBytes float64 `json:"avg_memory_bytes"`
	AvgDiskMBps    float64 `json:"avg_disk_mbps"`
	AvgNetworkMbps float64 `json:"avg_network_mbps"`
	FlaggedSamples int64   `json:"flagged_samples"`
}

// TickSummary is one row of the ticks table.
type TickSummary struct {
	TickID       int64     `json:"tick_id"`
	CollectedAt  time.Time `json:"collected_at"`
	ProcessCount int32     `json:"process_count"`
	FlaggedCount int32     `json:"flagged_count"`
}

// rankExpr maps a metric name to the aggregate used for ordering.
var rankExpr = map[string]string{
	"cpu":     "avg_cpu",
	"memory":  "avg_mem",
	"disk":    "avg_disk",
	"network": "avg_net",
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return min(limit, maxQueryLimit)
}

// QueryProcessHistory returns the most recent recorded ticks for pid,
// newest first.
func (r *Repo) QueryProcessHistory(ctx context.Context, pid int32, limit int) ([]ProcessHistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			t.collected_at,
			s.pid,
			n.name,
			COALESCE(s.cpu_pct, 0),
			COALESCE(s.mem_bytes, 0),
			COALESCE(s.mem_pct, 0),
			COALESCE(s.disk_mbps, 0),
			COALESCE(s.net_mbps, 0),
			COALESCE(s.status, 'OK'),
			s.explanation
		FROM process_samples s
		JOIN ticks t ON t.tick_id = s.tick_id
		JOIN process_names n ON n.process_name_id = s.process_name_id
		WHERE s.pid = ?
		ORDER BY t.collected_at DESC
		LIMIT ?
	`, pid, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query process history failed: %w", err)
	}
	defer rows.Close()

	points := []ProcessHistoryPoint{} // Initialize as empty slice, not nil
	for rows.Next() {
		var p ProcessHistoryPoint
		var explanation sql.NullString
		if err := rows.Scan(
			&p.CollectedAt,
			&p.PID,
			&p.Name,
			&p.CPUPercent,
			&p.MemoryBytes,
			&p.MemoryPercent,
			&p.DiskMBps,
			&p.NetworkMbps,
			&p.Status,
			&explanation,
		); err != nil {
			return nil, fmt.Errorf("scan process history failed: %w", err)
		}
		p.Explanation = explanation.String
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return points, nil
}

// QueryTopProcesses ranks process names by the average of metric (cpu,
// memory, disk or network) over ticks collected at or after since.
func (r *Repo) QueryTopProcesses(ctx context.Context, metric string, since time.Time, limit int) ([]ProcessAggregate, error) {
	order, ok := rankExpr[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	query := `
		SELECT
			n.name,
			COUNT(DISTINCT s.pid),
			COUNT(*),
			COALESCE(AVG(s.cpu_pct), 0)   AS avg_cpu,
			COALESCE(MAX(s.cpu_pct), 0),
			COALESCE(AVG(s.mem_bytes), 0) AS avg_mem,
			COALESCE(AVG(s.disk_mbps), 0) AS avg_disk,
			COALESCE(AVG(s.net_mbps), 0)  AS avg_net,
			COUNT(*) FILTER (WHERE s.severity_level > 0)
		FROM process_samples s
		JOIN ticks t ON t.tick_id = s.tick_id
		JOIN process_names n ON n.process_name_id = s.process_name_id
		WHERE t.collected_at >= ?
		GROUP BY n.name
		ORDER BY ` + order + ` DESC, n.name
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, since.UTC(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query top processes failed: %w", err)
	}
	defer rows.Close()

	out := []ProcessAggregate{}
	for rows.Next() {
		var a ProcessAggregate
		if err := rows.Scan(
			&a.Name,
			&a.PIDs,
			&a.Samples,
			&a.AvgCPUPercent,
			&a.MaxCPUPercent,
			&a.AvgMemoryBytes,
			&a.AvgDiskMBps,
			&a.AvgNetworkMbps,
			&a.FlaggedSamples,
		); err != nil {
			return nil, fmt.Errorf("scan top process failed: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// QueryTicks returns the most recent ticks, newest first.
func (r *Repo) QueryTicks(ctx context.Context, limit int) ([]TickSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tick_id, collected_at, process_count, flagged_count
		FROM ticks
		ORDER BY collected_at DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query ticks failed: %w", err)
	}
	defer rows.Close()

	ticks := []TickSummary{}
	for rows.Next() {
		var t TickSummary
		if err := rows.Scan(&t.TickID, &t.CollectedAt, &t.ProcessCount, &t.FlaggedCount); err != nil {
			return nil, fmt.Errorf("scan tick failed: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ticks, nil
}
