package ratelimit

import (
	"sync"
	"time"
)

// counter tracks one client's request count for one window. expiresAt is
// kept for eviction; a counter whose window has passed is reset in place on
// next access, so expiry never has to race the sweeper.
type counter struct {
	windowID  int64
	count     int
	expiresAt time.Time
}

// MemoryStore is an in-memory fixed-window counter store. A single mutex
// guards the map so the lookup-increment-compare sequence is indivisible
// with respect to concurrent requests for the same key. A background
// goroutine periodically sweeps counters whose windows have long expired.
//
// Each process enforces its limit against local state only. Running N
// instances behind a balancer multiplies the effective limit by N; a single
// global limit requires a shared, atomically updated store instead of this
// one.
type MemoryStore struct {
	sweepInterval time.Duration

	mu       sync.Mutex
	counters map[string]*counter
	done     chan struct{}
	closed   bool
}

// NewMemoryStore creates a counter store and starts its eviction goroutine.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sweepInterval: sweepInterval,
		counters:      make(map[string]*counter),
		done:          make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Increment atomically counts one request for key and checks it against the
// policy budget. The post-increment count decides admission, so exactly
// p.MaxRequests requests are admitted per key per window regardless of how
// many arrive concurrently.
func (s *MemoryStore) Increment(key string, p Policy, now time.Time) (Result, error) {
	id := p.windowID(now)
	resetAt := p.resetAt(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.windowID != id {
		// First request of a new window. Any previous window's count is
		// irrelevant: every window starts from zero.
		c = &counter{windowID: id}
		s.counters[key] = c
	}
	c.count++
	c.expiresAt = resetAt

	remaining := p.MaxRequests - c.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Admitted:  c.count <= p.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Len reports the number of tracked counters. Used by tests and stats.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// sweep periodically evicts counters whose windows expired before the
// previous sweep, keeping memory bounded for keys that stop sending.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

func (s *MemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.counters {
		if c.expiresAt.Before(now) {
			delete(s.counters, key)
		}
	}
}
