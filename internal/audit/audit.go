// Package audit records rate limit denials so operators can answer "who is
// being throttled, and how hard" without grepping logs. It provides a clean
// storage abstraction with in-memory, SQLite, and PostgreSQL backends plus a
// non-blocking recorder that decouples request handling from persistence.
package audit

import (
	"context"
	"time"
)

// Event is one recorded denial.
type Event struct {
	ID         string    `json:"id"`
	ClientKey  string    `json:"client_key"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Limit      int       `json:"limit"`
	ResetAt    time.Time `json:"reset_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Store persists denial events and answers introspection queries.
type Store interface {
	// Record persists one denial event.
	Record(ctx context.Context, event *Event) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]*Event, error)

	// CountByClient returns denial counts per client key for events at or
	// after since.
	CountByClient(ctx context.Context, since time.Time) (map[string]int, error)

	// Close releases backend resources.
	Close() error
}
