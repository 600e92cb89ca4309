// Package history persists completed gate operations to SQLite so operators
// can audit what the gate did and why.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// Entry is one completed operation.
type Entry struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`          // open, close, stop
	Source     string    `json:"source"`      // mqtt, http, trigger
	Reason     string    `json:"reason"`      // reached_target, timed_out, stopped
	FinalState string    `json:"final_state"` // open, closed, unknown
	Position   float64   `json:"position"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Repository stores and queries operation history.
type Repository interface {
	// Record inserts a completed operation. An empty ID is assigned.
	Record(ctx context.Context, e Entry) error

	// Recent returns the newest entries, most recent first.
	// Limit defaults to 50 and is capped at 200.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Prune deletes entries finished before the horizon and returns the
	// number removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id          TEXT PRIMARY KEY,
	op          TEXT NOT NULL,
	source      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	final_state TEXT NOT NULL,
	position    REAL NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_finished_at ON operations(finished_at);
`

// SQLiteRepository implements Repository on a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
// Use ":memory:" for tests.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Record inserts a completed operation.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.Op == "" {
		return fmt.Errorf("history: op is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Source == "" {
		e.Source = "unknown"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operations (id, op, source, reason, final_state, position, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Op, e.Source, e.Reason, e.FinalState, e.Position,
		e.StartedAt.UTC(), e.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, op, source, reason, final_state, position, started_at, finished_at
		 FROM operations
		 ORDER BY finished_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Op, &e.Source, &e.Reason, &e.FinalState,
			&e.Position, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return entries, nil
}

// Prune deletes entries finished before the horizon.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
