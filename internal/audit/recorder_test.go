package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsAsynchronously(t *testing.T) {
	store := NewMemoryStore(100)
	defer store.Close()

	rec := NewRecorder(store, 16)
	resetAt := time.Now().Add(time.Minute)

	rec.Record("203.0.113.9", "GET", "/products", 100, resetAt)
	rec.Record("203.0.113.9", "GET", "/cart", 100, resetAt)
	rec.Close() // flushes the queue

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "203.0.113.9", events[0].ClientKey)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestRecorder_RecordAfterCloseIsNoop(t *testing.T) {
	store := NewMemoryStore(100)
	defer store.Close()

	rec := NewRecorder(store, 16)
	rec.Close()

	// Must not panic or block.
	rec.Record("203.0.113.9", "GET", "/products", 100, time.Now())

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecorder_DoubleClose(t *testing.T) {
	rec := NewRecorder(NewMemoryStore(10), 4)
	rec.Close()
	rec.Close()
}

// blockingStore never finishes a Record call until released.
type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) Record(ctx context.Context, event *Event) error {
	<-b.release
	return b.MemoryStore.Record(ctx, event)
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	blocking := &blockingStore{
		MemoryStore: NewMemoryStore(100),
		release:     make(chan struct{}),
	}
	defer blocking.Close()

	rec := NewRecorder(blocking, 2)
	resetAt := time.Now().Add(time.Minute)

	// One event is pulled by the drain goroutine and blocks; two sit in
	// the buffer; the rest must be dropped, not queued.
	for i := 0; i < 10; i++ {
		rec.Record("client", "GET", "/products", 100, resetAt)
	}

	assert.Eventually(t, func() bool {
		return rec.Dropped() >= 7
	}, time.Second, 10*time.Millisecond)

	close(blocking.release)
	rec.Close()
}
