package ratelimit

import (
	"log/slog"
	"net/http"
	"time"
)

// Decision is the admission verdict for one request. Exempt decisions carry
// no quota metadata; all others report the state of the client's budget so
// response headers can be populated on both allow and deny.
type Decision struct {
	Allowed    bool
	Exempt     bool
	Key        string
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // meaningful only when denied
}

// Guard sits at the boundary of every inbound request and produces the
// allow/deny decision. Its collaborators are injected so each can be
// substituted independently in tests or swapped for other implementations.
type Guard struct {
	identifier Identifier
	matcher    Matcher
	store      Store
	policy     Policy
	now        func() time.Time
}

// GuardOption configures optional Guard behavior.
type GuardOption func(*Guard)

// WithClock overrides the guard's time source. Used by tests to step
// across window boundaries without sleeping.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard wires an admission guard from its collaborators.
func NewGuard(identifier Identifier, matcher Matcher, store Store, policy Policy, opts ...GuardOption) *Guard {
	g := &Guard{
		identifier: identifier,
		matcher:    matcher,
		store:      store,
		policy:     policy,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the active admission policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Decide evaluates one request. Exemption is checked before any counter is
// touched, so exempt traffic neither consumes nor is affected by anyone's
// budget. Every non-exempt request mutates its counter exactly once.
//
// A store failure fails open: the request is admitted and the error is
// logged. Denying on limiter malfunction would turn a limiter bug into a
// full outage, which is a worse failure mode than brief over-admission.
func (g *Guard) Decide(r *http.Request) Decision {
	if g.matcher.Exempt(r.Method, r.URL.Path) {
		return Decision{Allowed: true, Exempt: true}
	}

	key := g.identifier.Resolve(r)
	now := g.now()

	res, err := g.store.Increment(key, g.policy, now)
	if err != nil {
		slog.Error("admission counter failed, failing open",
			"error", err,
			"client_key", key,
		)
		return Decision{
			Allowed:   true,
			Key:       key,
			Limit:     g.policy.MaxRequests,
			Remaining: 0,
			ResetAt:   g.policy.resetAt(now),
		}
	}

	d := Decision{
		Allowed:   res.Admitted,
		Key:       key,
		Limit:     g.policy.MaxRequests,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}
	if !res.Admitted {
		d.RetryAfter = res.ResetAt.Sub(now)
	}
	return d
}
