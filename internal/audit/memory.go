package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the most recent denial events in a fixed-size ring
// buffer. Data is lost on restart, which is acceptable for the default
// deployment: the audit trail is an operational aid, not a ledger.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event // ring buffer, next is the write position
	next   int
	filled bool
	closed bool
}

// NewMemoryStore creates an in-memory store holding at most maxEvents.
func NewMemoryStore(maxEvents int) *MemoryStore {
	return &MemoryStore{
		events: make([]*Event, maxEvents),
	}
}

// Record stores one event, overwriting the oldest when the buffer is full.
func (m *MemoryStore) Record(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	ev := *event
	m.events[m.next] = &ev
	m.next++
	if m.next == len(m.events) {
		m.next = 0
		m.filled = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	size := m.next
	if m.filled {
		size = len(m.events)
	}
	if limit > size {
		limit = size
	}

	out := make([]*Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.events)) % len(m.events)
		ev := *m.events[idx]
		out = append(out, &ev)
	}
	return out, nil
}

// CountByClient aggregates denial counts per client since the given time.
func (m *MemoryStore) CountByClient(ctx context.Context, since time.Time) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	counts := make(map[string]int)
	for _, e := range m.events {
		if e == nil {
			continue
		}
		if e.OccurredAt.Before(since) {
			continue
		}
		counts[e.ClientKey]++
	}
	return counts, nil
}

// Close marks the store closed; subsequent operations return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
