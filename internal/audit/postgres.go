package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS denials (
	id          TEXT PRIMARY KEY,
	client_key  TEXT NOT NULL,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	request_limit INTEGER NOT NULL,
	reset_at    TIMESTAMPTZ NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_denials_occurred_at ON denials(occurred_at);
CREATE INDEX IF NOT EXISTS idx_denials_client_key ON denials(client_key);
`

// PostgresStore persists denial events in PostgreSQL. Use this when several
// gateway instances should feed one shared audit trail.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and ensures the schema
// exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL audit store")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Record inserts one denial event.
func (p *PostgresStore) Record(ctx context.Context, event *Event) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO denials (id, client_key, method, path, request_limit, reset_at, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.ClientKey, event.Method, event.Path,
		event.Limit, event.ResetAt.UTC(), event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert denial event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, client_key, method, path, request_limit, reset_at, occurred_at
		 FROM denials ORDER BY occurred_at DESC LIMIT $1`, limit)
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
func (p *PostgresStore) CountByClient(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT client_key, COUNT(*) FROM denials WHERE occurred_at >= $1 GROUP BY client_key`,
		since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate denial events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		counts[key] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate rows: %w", err)
	}
	return counts, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
