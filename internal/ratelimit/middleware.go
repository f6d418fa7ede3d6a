package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"gatekeeper/internal/models"
)

// denialLogBudget caps rate-limit warning logs. An abusive client generates
// one denial per request; logging each one would let the attacker flood the
// logs, so warnings are sampled.
var denialLogBudget = rate.NewLimiter(rate.Limit(1), 5)

// MiddlewareOption configures optional middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onDenial func(r *http.Request, d Decision)
}

// WithDenialHook registers a callback invoked for every denied request,
// after the response has been written. Used to feed the audit store; the
// hook must not block.
func WithDenialHook(hook func(r *http.Request, d Decision)) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.onDenial = hook
	}
}

// Middleware returns HTTP middleware that enforces admission control via
// the guard. Non-exempt decisions set X-RateLimit-Limit, -Remaining and
// -Reset headers whether admitted or not, so well-behaved clients can
// self-throttle before hitting the limit. Denials get a Retry-After header
// and a JSON body carrying the same quota metadata.
func Middleware(guard *Guard, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := guard.Decide(r)

			if d.Exempt {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))

			if !d.Allowed {
				retryAfterSecs := int(d.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.NewRateLimitedResponse(d.Limit, d.ResetAt))

				if denialLogBudget.Allow() {
					slog.Warn("request denied by rate limit",
						"client_key", d.Key,
						"method", r.Method,
						"path", r.URL.Path,
						"limit", d.Limit,
						"retry_after", retryAfterSecs,
					)
				}

				if cfg.onDenial != nil {
					cfg.onDenial(r, d)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
