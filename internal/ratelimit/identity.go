package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// SentinelKey is used when no client address can be resolved. Distinct
// clients collapsing onto the sentinel share one budget; that precision
// loss is accepted rather than treated as an error.
const SentinelKey = "unknown"

// IPIdentifier resolves clients by IP address. When TrustProxy is set, the
// forwarded-address headers are consulted first; otherwise only the
// transport-level remote address is used, since anyone can forge headers.
type IPIdentifier struct {
	TrustProxy bool
}

// Resolve returns the canonical key for the requester: the originating
// (left-most) X-Forwarded-For entry or X-Real-IP when proxies are trusted,
// the RemoteAddr host otherwise, and the sentinel when nothing is usable.
func (id IPIdentifier) Resolve(r *http.Request) string {
	if id.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}

	return SentinelKey
}
