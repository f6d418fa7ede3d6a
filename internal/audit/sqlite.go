package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS denials (
	id          TEXT PRIMARY KEY,
	client_key  TEXT NOT NULL,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	request_limit INTEGER NOT NULL,
	reset_at    TIMESTAMP NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_denials_occurred_at ON denials(occurred_at);
CREATE INDEX IF NOT EXISTS idx_denials_client_key ON denials(client_key);
`

// SQLiteStore persists denial events in a local SQLite database. Suitable
// for single-node deployments that want the audit trail to survive restarts
// without running a database server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary initializes) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for SQLite audit store")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record inserts one denial event.
func (s *SQLiteStore) Record(ctx context.Context, event *Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO denials (id, client_key, method, path, request_limit, reset_at, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ClientKey, event.Method, event.Path,
		event.Limit, event.ResetAt.UTC(), event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert denial event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_key, method, path, request_limit, reset_at, occurred_at
		 FROM denials ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query denial events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ClientKey, &e.Method, &e.Path, &e.Limit, &e.ResetAt, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan denial event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate denial events: %w", err)
	}
	return events, nil
}

// CountByClient aggregates denial counts per client since the given time.
func (s *SQLiteStore) CountByClient(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_key, COUNT(*) FROM denials WHERE occurred_at >= ? GROUP BY client_key`,
		since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate denial events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate rows: %w", err)
	}
	return counts, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
