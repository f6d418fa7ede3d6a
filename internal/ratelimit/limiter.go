// Package ratelimit implements per-client request admission control using a
// fixed-window counter. Every inbound request is either admitted, denied with
// a structured 429, or exempted by rule (webhook callbacks must never be
// throttled). The package also includes HTTP middleware that sets standard
// rate limit response headers on every decision.
package ratelimit

import (
	"net/http"
	"time"
)

// Store holds per-key request counts for the current window. Implementations
// must make the increment-and-compare step atomic per key: two concurrent
// callers must never both be admitted past the budget.
type Store interface {
	// Increment records one request for key in the window containing now
	// and reports whether it fits inside the policy budget. The comparison
	// uses the post-increment count, so with MaxRequests = M the Mth
	// request is admitted and the (M+1)th is the first denial.
	Increment(key string, p Policy, now time.Time) (Result, error)

	// Close stops background goroutines and releases resources.
	Close()
}

// Result is the outcome of one counter increment.
type Result struct {
	Admitted  bool
	Remaining int       // Budget left after this request, never negative
	ResetAt   time.Time // Start of the next window for this key
}

// Identifier derives the canonical client key for a request. Implementations
// must be pure: no side effects, no blocking I/O.
type Identifier interface {
	Resolve(r *http.Request) string
}

// Matcher decides whether a request is exempt from admission control.
// Exempt requests bypass quota accounting entirely; they consume no budget
// and never touch a counter.
type Matcher interface {
	Exempt(method, path string) bool
}
