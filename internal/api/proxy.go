package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"gatekeeper/internal/models"
)

// NewUpstreamProxy builds the reverse proxy that carries admitted traffic
// to the fronted application. Upstream failures surface as 502 with the
// standard error envelope instead of a hung or empty response.
func NewUpstreamProxy(cfg models.UpstreamConfig) (http.Handler, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream proxy error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"upstream", target.Host,
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		errorResp := models.NewErrorResponse("Upstream unavailable", models.ErrorCodeUpstreamUnreached)
		json.NewEncoder(w).Encode(errorResp)
	}

	return proxy, nil
}
