package counters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"rizzmate-gateway/internal/trending"
)

// SQLiteStore keeps one row per metric; Increment is a single upsert, so
// concurrent increments never lose updates.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("counters: open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in effect
	// and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("counters: execute pragma %s: %w", pragma, err)
		}
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS line_metrics (
			id TEXT PRIMARY KEY,
			copies INTEGER NOT NULL DEFAULT 0,
			saves INTEGER NOT NULL DEFAULT 0,
			last_used_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counters: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("counters: close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context) (map[string]trending.LineMetric, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, copies, saves, last_used_at FROM line_metrics")
	if err != nil {
		return nil, fmt.Errorf("counters: query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]trending.LineMetric)
	for rows.Next() {
		var m trending.LineMetric
		if err := rows.Scan(&m.ID, &m.Copies, &m.Saves, &m.LastUsedAt); err != nil {
			return nil, fmt.Errorf("counters: scan metric: %w", err)
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counters: iterate metrics: %w", err)
	}
	return out, nil
}

// Write replaces every stored metric with all.
func (s *SQLiteStore) Write(ctx context.Context, all map[string]trending.LineMetric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("counters: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM line_metrics"); err != nil {
		return fmt.Errorf("counters: clear metrics: %w", err)
	}
	for id, m := range all {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO line_metrics (id, copies, saves, last_used_at) VALUES (?, ?, ?, ?)",
			id, m.Copies, m.Saves, m.LastUsedAt)
		if err != nil {
			return fmt.Errorf("counters: insert %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("counters: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Increment(ctx context.Context, id string, field Field, at time.Time) (trending.LineMetric, error) {
	var copies, saves int64
	switch field {
	case Copies:
		copies = 1
	case Saves:
		saves = 1
	default:
		return trending.LineMetric{}, fmt.Errorf("counters: unknown field %q", field)
	}

	var m trending.LineMetric
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO line_metrics (id, copies, saves, last_used_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			copies = copies + excluded.copies,
			saves = saves + excluded.saves,
			last_used_at = excluded.last_used_at
		RETURNING id, copies, saves, last_used_at`,
		id, copies, saves, at.UnixMilli(),
	).Scan(&m.ID, &m.Copies, &m.Saves, &m.LastUsedAt)
	if err != nil {
		return trending.LineMetric{}, fmt.Errorf("counters: increment %s: %w", id, err)
	}
	return m, nil
}
