package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder writes denial events to a Store from a background goroutine so
// request handling never blocks on persistence. The submission buffer is
// bounded; when a denial flood outruns the backend, events are dropped and
// counted rather than queued without limit.
type Recorder struct {
	store  Store
	queue  chan *Event
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	dropped int64
}

// NewRecorder starts a recorder draining into store with the given buffer
// size.
func NewRecorder(store Store, bufferSize int) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan *Event, bufferSize),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record submits a denial event without blocking. The event is assigned an
// ID and timestamp here so callers only describe what was denied. Failure
// to record never propagates to the request path.
func (r *Recorder) Record(clientKey, method, path string, limit int, resetAt time.Time) {
	event := &Event{
		ID:         uuid.New().String(),
		ClientKey:  clientKey,
		Method:     method,
		Path:       path,
		Limit:      limit,
		ResetAt:    resetAt,
		OccurredAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- event:
	default:
		r.dropped++
	}
}

// Dropped reports how many events were discarded because the buffer was
// full.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting events, flushes the queue, and returns once the
// writer goroutine has exited. The underlying store is not closed.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Record(ctx, event); err != nil {
			slog.Error("failed to record denial event", "error", err, "client_key", event.ClientKey)
		}
		cancel()
	}
}
