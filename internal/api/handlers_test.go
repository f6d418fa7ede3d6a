package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
)

func testSecurityConfig() models.SecurityConfig {
	return models.SecurityConfig{
		RateLimit: models.RateLimitConfig{
			Enabled:     true,
			Mode:        models.ModeStrict,
			Window:      60 * time.Second,
			MaxRequests: 0,
		},
		Exemptions: []models.ExemptionRule{
			{Method: "POST", PathPrefix: "/webhooks/"},
		},
		TrustProxy: true,
	}
}

func seedDenials(t *testing.T, store audit.Store, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		err := store.Record(context.Background(), &audit.Event{
			ID:         "evt-" + strconv.Itoa(i),
			ClientKey:  "203.0.113.9",
			Method:     "GET",
			Path:       "/products",
			Limit:      60,
			ResetAt:    base.Add(time.Minute),
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

func TestHealthCheck(t *testing.T) {
	handlers := NewHandlers(http.NotFoundHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	handlers.HealthCheck(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp models.HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestGetLimits(t *testing.T) {
	handlers := NewHandlers(http.NotFoundHandler(), WithSecurityConfig(testSecurityConfig()))

	req := httptest.NewRequest("GET", "/api/v1/limits", nil)
	rr := httptest.NewRecorder()
	handlers.GetLimits(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp models.LimitsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Enabled)
	assert.Equal(t, models.ModeStrict, resp.Mode)
	assert.Equal(t, "1m0s", resp.Window)
	assert.Equal(t, models.DefaultStrictMaxRequests, resp.MaxRequests)
	assert.True(t, resp.TrustProxy)
	require.Len(t, resp.Exemptions, 1)
	assert.Equal(t, "/webhooks/", resp.Exemptions[0].PathPrefix)
}

func TestListDenials(t *testing.T) {
	store := audit.NewMemoryStore(100)
	defer store.Close()
	seedDenials(t, store, 5)

	handlers := NewHandlers(http.NotFoundHandler(), WithAuditStore(store))

	req := httptest.NewRequest("GET", "/api/v1/denials", nil)
	rr := httptest.NewRecorder()
	handlers.ListDenials(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Denials []*audit.Event `json:"denials"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Count)
	require.Len(t, resp.Denials, 5)
	assert.Equal(t, "203.0.113.9", resp.Denials[0].ClientKey)
}

func TestListDenials_LimitParam(t *testing.T) {
	store := audit.NewMemoryStore(100)
	defer store.Close()
	seedDenials(t, store, 10)

	handlers := NewHandlers(http.NotFoundHandler(), WithAuditStore(store))

	req := httptest.NewRequest("GET", "/api/v1/denials?limit=3", nil)
	rr := httptest.NewRecorder()
	handlers.ListDenials(rr, req)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}

func TestListDenials_InvalidLimit(t *testing.T) {
	store := audit.NewMemoryStore(100)
	defer store.Close()

	handlers := NewHandlers(http.NotFoundHandler(), WithAuditStore(store))

	for _, raw := range []string{"zero", "-1", "0"} {
		req := httptest.NewRequest("GET", "/api/v1/denials?limit="+raw, nil)
		rr := httptest.NewRecorder()
		handlers.ListDenials(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", raw)
	}
}

func TestListDenials_AuditDisabled(t *testing.T) {
	handlers := NewHandlers(http.NotFoundHandler())

	req := httptest.NewRequest("GET", "/api/v1/denials", nil)
	rr := httptest.NewRecorder()
	handlers.ListDenials(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, models.ErrorCodeNotFound, resp.Error.Code)
}

func TestTopDenied(t *testing.T) {
	store := audit.NewMemoryStore(100)
	defer store.Close()
	seedDenials(t, store, 4)

	handlers := NewHandlers(http.NotFoundHandler(), WithAuditStore(store))

	req := httptest.NewRequest("GET", "/api/v1/denials/top?since=24h", nil)
	rr := httptest.NewRecorder()
	handlers.TopDenied(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Since  string         `json:"since"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "24h0m0s", resp.Since)
	assert.Equal(t, 4, resp.Counts["203.0.113.9"])
}

func TestTopDenied_InvalidSince(t *testing.T) {
	store := audit.NewMemoryStore(100)
	defer store.Close()

	handlers := NewHandlers(http.NotFoundHandler(), WithAuditStore(store))

	req := httptest.NewRequest("GET", "/api/v1/denials/top?since=yesterday", nil)
	rr := httptest.NewRecorder()
	handlers.TopDenied(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
