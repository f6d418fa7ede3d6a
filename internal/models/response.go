// Package models - API response types and error envelopes.
// All endpoints share one JSON error structure so clients can handle
// failures uniformly; rate limit rejections carry quota metadata in the
// body in addition to the response headers.
package models

import (
	"time"
)

// Error codes for machine-readable error handling
const (
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"
	ErrorCodeNotFound          = "NOT_FOUND"
	ErrorCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrorCodeUpstreamUnreached = "UPSTREAM_UNREACHABLE"
	ErrorCodeInternalError     = "INTERNAL_ERROR"
)

// ErrorDetail is the inner error object shared by all error responses.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorResponse is the standard envelope for non-2xx responses.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewErrorResponse creates a standard error response.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Code:    code,
		},
		Timestamp: time.Now().UTC(),
	}
}

// RateLimitedResponse is the body of every 429. Remaining is always zero on
// denial; ResetAt tells the client when its budget renews.
type RateLimitedResponse struct {
	Error     ErrorDetail `json:"error"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
	ResetAt   time.Time   `json:"reset_at"`
}

// NewRateLimitedResponse creates the rejection body for a denied request.
func NewRateLimitedResponse(limit int, resetAt time.Time) *RateLimitedResponse {
	return &RateLimitedResponse{
		Error: ErrorDetail{
			Message: "Rate limit exceeded",
			Code:    ErrorCodeRateLimited,
		},
		Limit:     limit,
		Remaining: 0,
		ResetAt:   resetAt,
	}
}

// LimitsResponse describes the active admission policy for introspection.
type LimitsResponse struct {
	Enabled     bool            `json:"enabled"`
	Mode        string          `json:"mode"`
	Window      string          `json:"window"`
	MaxRequests int             `json:"max_requests"`
	TrustProxy  bool            `json:"trust_proxy"`
	Exemptions  []ExemptionRule `json:"exemptions"`
}

// HealthResponse reports service liveness and build identity.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
