package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const denialRecorderBuffer = 256

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Build the reverse proxy to the fronted application
	upstream, err := api.NewUpstreamProxy(cfg.Upstream)
	if err != nil {
		slog.Error("Failed to initialize upstream proxy", "error", err)
		os.Exit(1)
	}

	handlerOpts := []api.HandlerOption{
		api.WithSecurityConfig(cfg.Security),
	}

	// Initialize the denial audit store and its async recorder
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		auditStore, err := audit.NewStore(cfg.Audit)
		if err != nil {
			slog.Error("Failed to initialize audit store", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()

		recorder = audit.NewRecorder(auditStore, denialRecorderBuffer)
		defer recorder.Close()

		handlerOpts = append(handlerOpts, api.WithAuditStore(auditStore))
	}

	handlers := api.NewHandlers(upstream, handlerOpts...)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Initialize admission control if enabled
	if cfg.Security.RateLimit.Enabled {
		rlCfg := cfg.Security.RateLimit

		memStore := ratelimit.NewMemoryStore(rlCfg.CleanupInterval)
		defer memStore.Close()

		var counterStore ratelimit.Store = memStore
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedStore(memStore)
			if err != nil {
				slog.Error("Failed to create instrumented counter store", "error", err)
				os.Exit(1)
			}
			counterStore = instrumented
		}

		guard := ratelimit.NewGuard(
			ratelimit.IPIdentifier{TrustProxy: cfg.Security.TrustProxy},
			ratelimit.NewRuleSet(cfg.Security.Exemptions),
			counterStore,
			ratelimit.PolicyFromConfig(rlCfg),
		)

		mwOpts := []ratelimit.MiddlewareOption{}
		if recorder != nil {
			mwOpts = append(mwOpts, ratelimit.WithDenialHook(func(r *http.Request, d ratelimit.Decision) {
				recorder.Record(d.Key, r.Method, r.URL.Path, d.Limit, d.ResetAt)
			}))
		}

		routeOpts = append(routeOpts, api.WithAdmissionMiddleware(ratelimit.Middleware(guard, mwOpts...)))

		slog.Info("Admission control enabled",
			"mode", rlCfg.Mode,
			"window", rlCfg.Window,
			"max_requests", rlCfg.ResolveMaxRequests(),
			"trust_proxy", cfg.Security.TrustProxy,
			"exemptions", len(cfg.Security.Exemptions))
	} else {
		slog.Warn("Admission control is disabled; all traffic passes through")
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "upstream", cfg.Upstream.URL)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if recorder != nil {
		if dropped := recorder.Dropped(); dropped > 0 {
			slog.Warn("Denial audit events dropped under load", "dropped", dropped)
		}
	}

	slog.Info("Server shutdown complete")
}
