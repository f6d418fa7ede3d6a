package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{Window: 60 * time.Second, MaxRequests: 5}

func TestMemoryStore_AdmitsUpToLimit(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	for i := 1; i <= testPolicy.MaxRequests; i++ {
		res, err := store.Increment("203.0.113.9", testPolicy, now)
		require.NoError(t, err)
		assert.True(t, res.Admitted, "request %d should be admitted", i)
		assert.Equal(t, testPolicy.MaxRequests-i, res.Remaining)
	}

	// The (M+1)th request is the first denial.
	res, err := store.Increment("203.0.113.9", testPolicy, now)
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryStore_ResetAtIsWindowBoundary(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	// 12:00:10 falls in the window [12:00:00, 12:01:00); it resets at 12:01:00.
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	res, err := store.Increment("client", testPolicy, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC), res.ResetAt.UTC())

	// Denials in the same window report the identical reset time.
	var last Result
	for i := 0; i < 10; i++ {
		last, err = store.Increment("client", testPolicy, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	assert.False(t, last.Admitted)
	assert.Equal(t, res.ResetAt, last.ResetAt)
}

func TestMemoryStore_NewWindowStartsAtZero(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	now := time.Date(2026, 3, 1, 12, 0, 59, 0, time.UTC)

	// Exhaust the budget in the current window.
	for i := 0; i < testPolicy.MaxRequests+3; i++ {
		_, err := store.Increment("client", testPolicy, now)
		require.NoError(t, err)
	}

	// One second later the window has rolled over; the previous count is gone.
	later := now.Add(time.Second)
	res, err := store.Increment("client", testPolicy, later)
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, testPolicy.MaxRequests-1, res.Remaining)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	for i := 0; i <= testPolicy.MaxRequests; i++ {
		store.Increment("hot-client", testPolicy, now)
	}
	res, err := store.Increment("hot-client", testPolicy, now)
	require.NoError(t, err)
	assert.False(t, res.Admitted)

	res, err = store.Increment("quiet-client", testPolicy, now)
	require.NoError(t, err)
	assert.True(t, res.Admitted, "another client's flood must not consume this budget")
}

func TestMemoryStore_ConcurrentBurstAdmitsExactlyMax(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	policy := Policy{Window: time.Hour, MaxRequests: 50}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const requests = 200

	var wg sync.WaitGroup
	admissions := make(chan bool, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Increment("burst-client", policy, now)
			require.NoError(t, err)
			admissions <- res.Admitted
		}()
	}
	wg.Wait()
	close(admissions)

	admitted := 0
	for ok := range admissions {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, policy.MaxRequests, admitted,
		"exactly MaxRequests of %d concurrent requests may be admitted", requests)
}

func TestMemoryStore_ConcurrentDistinctKeys(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	policy := Policy{Window: time.Hour, MaxRequests: 10}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id%5)
			for j := 0; j < 20; j++ {
				store.Increment(key, policy, now)
			}
		}(i)
	}
	wg.Wait()
	// No lost updates or races -- run with -race flag.
	assert.Equal(t, 5, store.Len())
}

func TestMemoryStore_EvictsExpiredCounters(t *testing.T) {
	store := NewMemoryStore(time.Hour) // sweeper ticks are irrelevant here
	defer store.Close()

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	store.Increment("ephemeral", testPolicy, now)
	require.Equal(t, 1, store.Len())

	store.evictExpired(now.Add(2 * time.Minute))
	assert.Equal(t, 0, store.Len(), "expired counter should be evicted")

	// A live counter survives the sweep.
	store.Increment("live", testPolicy, now)
	store.evictExpired(now.Add(10 * time.Second))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_SweeperRuns(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	// A counter in an already-elapsed window should disappear on its own.
	past := time.Now().Add(-10 * time.Minute)
	store.Increment("stale", Policy{Window: time.Second, MaxRequests: 1}, past)
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	store.Close()
	// Double close must not panic.
	store.Close()
}
