// Package api wires the gateway's HTTP surface: a small introspection API
// for operators, health endpoints, and the catch-all reverse proxy that
// carries admitted traffic to the upstream application.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/version"
)

const (
	defaultDenialPageSize = 50
	maxDenialPageSize     = 500
	defaultTopWindow      = time.Hour
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	upstream   http.Handler
	auditStore audit.Store
	security   models.SecurityConfig
	rateLimit  models.RateLimitConfig
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithAuditStore provides the denial audit store backing the introspection
// endpoints. Without it, those endpoints report the feature as disabled.
func WithAuditStore(store audit.Store) HandlerOption {
	return func(h *Handlers) {
		h.auditStore = store
	}
}

// WithSecurityConfig provides the security configuration surfaced by the
// limits endpoint.
func WithSecurityConfig(cfg models.SecurityConfig) HandlerOption {
	return func(h *Handlers) {
		h.security = cfg
		h.rateLimit = cfg.RateLimit
	}
}

// NewHandlers creates the handler set. upstream receives every admitted
// request that no introspection route claims.
func NewHandlers(upstream http.Handler, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		upstream: upstream,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck reports service liveness and build identity.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Version:   version.GetInfo().Version,
		Timestamp: time.Now().UTC(),
	})
}

// GetLimits returns the active admission policy and exemption rules so
// operators can verify what a deployment actually enforces.
func (h *Handlers) GetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.LimitsResponse{
		Enabled:     h.rateLimit.Enabled,
		Mode:        h.rateLimit.Mode,
		Window:      h.rateLimit.Window.String(),
		MaxRequests: h.rateLimit.ResolveMaxRequests(),
		TrustProxy:  h.security.TrustProxy,
		Exemptions:  h.security.Exemptions,
	})
}

// ListDenials returns recent denial events, newest first. The page size is
// controlled by the "limit" query parameter.
func (h *Handlers) ListDenials(w http.ResponseWriter, r *http.Request) {
	if h.auditStore == nil {
		writeError(w, http.StatusNotFound, "Denial audit is disabled", models.ErrorCodeNotFound)
		return
	}

	limit := defaultDenialPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", models.ErrorCodeInvalidRequest)
			return
		}
		limit = n
	}
	if limit > maxDenialPageSize {
		limit = maxDenialPageSize
	}

	events, err := h.auditStore.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list denial events", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read denial events", models.ErrorCodeInternalError)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"denials": events,
		"count":   len(events),
	})
}

// TopDenied returns denial counts per client key over a trailing window,
// controlled by the "since" query parameter (a Go duration, default 1h).
func (h *Handlers) TopDenied(w http.ResponseWriter, r *http.Request) {
	if h.auditStore == nil {
		writeError(w, http.StatusNotFound, "Denial audit is disabled", models.ErrorCodeNotFound)
		return
	}

	window := defaultTopWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration", models.ErrorCodeInvalidRequest)
			return
		}
		window = d
	}

	counts, err := h.auditStore.CountByClient(r.Context(), time.Now().Add(-window))
	if err != nil {
		slog.Error("failed to aggregate denial events", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read denial events", models.ErrorCodeInternalError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since":  window.String(),
		"counts": counts,
	})
}

// Proxy forwards the request to the upstream application.
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	h.upstream.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, models.NewErrorResponse(message, code))
}
