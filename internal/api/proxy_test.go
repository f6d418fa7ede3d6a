package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

func TestNewUpstreamProxy_ForwardsRequests(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "commerce")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	proxy, err := NewUpstreamProxy(models.UpstreamConfig{
		URL:            backend.URL,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/products", nil)
	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "commerce", rr.Header().Get("X-Backend"))
}

func TestNewUpstreamProxy_UnreachableUpstream(t *testing.T) {
	// A closed server guarantees connection refusal.
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()

	proxy, err := NewUpstreamProxy(models.UpstreamConfig{
		URL:            backend.URL,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/products", nil)
	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, models.ErrorCodeUpstreamUnreached, resp.Error.Code)
}

func TestNewUpstreamProxy_InvalidURL(t *testing.T) {
	_, err := NewUpstreamProxy(models.UpstreamConfig{URL: "://bad"})
	assert.Error(t, err)
}
