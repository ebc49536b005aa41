// Package storage persists completed scan results to SQLite for
// long-horizon trend queries. The JSON state files remain the daemon's
// operational truth; the archive exists for history that outlives the
// bounded health-history window.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scanner     TEXT NOT NULL,
	status      TEXT NOT NULL,
	violations  INTEGER NOT NULL,
	warnings    INTEGER NOT NULL,
	score       REAL,
	metrics     TEXT,
	summary     TEXT,
	duration_ms INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_results_scanner
	ON scan_results(scanner, recorded_at);
`

// Archive is the SQLite-backed scan result store.
type Archive struct {
	db *sql.DB
}

// ArchivedResult is one row of the archive.
type ArchivedResult struct {
	ID         int64              `json:"id"`
	Scanner    string             `json:"scanner"`
	Status     types.ScanStatus   `json:"status"`
	Violations int                `json:"violations"`
	Warnings   int                `json:"warnings"`
	Score      float64            `json:"score"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Summary    string             `json:"summary"`
	DurationMS int64              `json:"duration_ms"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// Open creates or opens the archive database. WAL mode keeps concurrent
// CLI readers from blocking the daemon's writes.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordResult appends one completed scan result.
func (a *Archive) RecordResult(ctx context.Context, r *types.ScanResult, score float64) error {
	metrics := "{}"
	if len(r.Metrics) > 0 {
		data, err := json.Marshal(r.Metrics)
		if err != nil {
			return fmt.Errorf("serializing metrics: %w", err)
		}
		metrics = string(data)
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO scan_results (scanner, status, violations, warnings, score, metrics, summary, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Scanner, string(r.Status), r.ErrorCount(), r.WarningCount(),
		score, metrics, r.Summary, r.DurationMS, r.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting scan result: %w", err)
	}
	return nil
}

// RecentResults returns up to limit rows, newest first, optionally
// filtered by scanner id.
func (a *Archive) RecentResults(ctx context.Context, scanner string, limit int) ([]ArchivedResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, scanner, status, violations, warnings, score, metrics, summary, duration_ms, recorded_at
		FROM scan_results`
	args := []any{}
	if scanner != "" {
		query += ` WHERE scanner = ?`
		args = append(args, scanner)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []ArchivedResult
	for rows.Next() {
		var r ArchivedResult
		var status, metrics, recordedAt string
		if err := rows.Scan(&r.ID, &r.Scanner, &status, &r.Violations, &r.Warnings,
			&r.Score, &metrics, &r.Summary, &r.DurationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		r.Status = types.ScanStatus(status)
		if metrics != "" && metrics != "{}" {
			_ = json.Unmarshal([]byte(metrics), &r.Metrics)
		}
		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			r.RecordedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the retention window and returns the
// number removed.
func (a *Archive) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	res, err := a.db.ExecContext(ctx, `DELETE FROM scan_results WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	return res.RowsAffected()
}
