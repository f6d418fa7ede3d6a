package ratelimit

import (
	"time"

	"gatekeeper/internal/models"
)

// Policy is the fixed-window admission budget. It is resolved once at
// startup and immutable afterwards; changing limits requires a restart.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// PolicyFromConfig resolves the effective policy from configuration,
// applying the operating mode default when no explicit override is set.
// Config validation has already rejected non-positive values.
func PolicyFromConfig(cfg models.RateLimitConfig) Policy {
	return Policy{
		Window:      cfg.Window,
		MaxRequests: cfg.ResolveMaxRequests(),
	}
}

// windowID identifies the fixed window containing t. All requests whose
// timestamps share a window ID share one counter.
func (p Policy) windowID(t time.Time) int64 {
	return t.UnixNano() / p.Window.Nanoseconds()
}

// resetAt returns the start of the window after the one containing t,
// which is the instant the counter for that window stops applying.
func (p Policy) resetAt(t time.Time) time.Time {
	return time.Unix(0, (p.windowID(t)+1)*p.Window.Nanoseconds())
}
