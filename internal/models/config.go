// Package models defines the configuration and API response types shared
// across the gatekeeper service.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Audit store type constants
const (
	AuditTypeMemory   = "memory"
	AuditTypeSQLite   = "sqlite"
	AuditTypePostgres = "postgres"
)

// Rate limit operating modes. Relaxed is meant for storefront-style traffic,
// strict for deployments that front admin or checkout surfaces.
const (
	ModeRelaxed = "relaxed"
	ModeStrict  = "strict"
)

// Default request budgets per window for each operating mode.
const (
	DefaultRelaxedMaxRequests = 300
	DefaultStrictMaxRequests  = 60
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Audit         AuditConfig         `yaml:"audit" json:"audit"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// UpstreamConfig describes the application the gateway fronts. Admitted
// requests that no local route claims are proxied to URL.
type UpstreamConfig struct {
	URL            string        `yaml:"url" json:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

type SecurityConfig struct {
	RateLimit  RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Exemptions []ExemptionRule `yaml:"exemptions" json:"exemptions"`

	// TrustProxy controls whether forwarded-address headers are believed.
	// Only enable when the gateway sits behind a proxy that strips
	// client-supplied X-Forwarded-For values.
	TrustProxy bool `yaml:"trust_proxy" json:"trust_proxy"`
}

// RateLimitConfig resolves to a single fixed-window policy at startup.
// Mode selects a default budget; MaxRequests overrides it when non-zero.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Mode            string        `yaml:"mode" json:"mode"`
	Window          time.Duration `yaml:"window" json:"window"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// ExemptionRule unconditionally admits matching requests without touching
// any counter. An empty Method matches every method. PathPrefix matching is
// case-insensitive.
type ExemptionRule struct {
	Method     string `yaml:"method" json:"method"`
	PathPrefix string `yaml:"path_prefix" json:"path_prefix"`
}

// AuditConfig configures the denial audit store.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`
	DSN     string `yaml:"dsn" json:"dsn"`

	// MaxEvents bounds the in-memory backend; ignored by database backends.
	MaxEvents int `yaml:"max_events" json:"max_events"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// The defaults keep protection on from the first request: rate limiting is
// enabled in relaxed mode with a 60 second window, payment-provider webhook
// callbacks are exempt, and forwarded headers are not trusted until an
// operator says so.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Upstream: UpstreamConfig{
			URL:            "http://localhost:9000",
			ConnectTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:         true,
				Mode:            ModeRelaxed,
				Window:          60 * time.Second,
				MaxRequests:     0, // resolved from Mode
				CleanupInterval: 5 * time.Minute,
			},
			Exemptions: []ExemptionRule{
				{Method: "POST", PathPrefix: "/webhooks/"},
			},
			TrustProxy: false,
		},
		Audit: AuditConfig{
			Enabled:   true,
			Type:      AuditTypeMemory,
			MaxEvents: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:  false,
				Exporter: "stdout",
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("invalid audit config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", sc.Port)
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout <= 0 || sc.WriteTimeout <= 0 || sc.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" || sc.TLSKeyFile == "" {
			return errors.New("tls_cert_file and tls_key_file are required when TLS is enabled")
		}
	}

	return nil
}

func (uc *UpstreamConfig) Validate() error {
	if uc.URL == "" {
		return errors.New("upstream url cannot be empty")
	}

	u, err := url.Parse(uc.URL)
	if err != nil {
		return fmt.Errorf("upstream url is not valid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("upstream url must include a host")
	}

	return nil
}

// Validate rejects any policy that would silently disable protection.
// A misconfigured limiter must stop the process, not weaken the limit.
func (sc *SecurityConfig) Validate() error {
	rl := sc.RateLimit

	if rl.Mode != ModeRelaxed && rl.Mode != ModeStrict {
		return fmt.Errorf("rate limit mode must be %q or %q, got %q", ModeRelaxed, ModeStrict, rl.Mode)
	}

	if rl.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", rl.Window)
	}

	if rl.MaxRequests < 0 {
		return fmt.Errorf("rate limit max_requests cannot be negative, got %d", rl.MaxRequests)
	}

	if rl.CleanupInterval <= 0 {
		return fmt.Errorf("rate limit cleanup_interval must be positive, got %s", rl.CleanupInterval)
	}

	for i, rule := range sc.Exemptions {
		if strings.TrimSpace(rule.PathPrefix) == "" {
			return fmt.Errorf("exemption rule %d: path_prefix cannot be empty", i)
		}
	}

	return nil
}

// ResolveMaxRequests returns the effective per-window budget: the explicit
// override when set, otherwise the operating mode's default.
func (rl RateLimitConfig) ResolveMaxRequests() int {
	if rl.MaxRequests > 0 {
		return rl.MaxRequests
	}
	if rl.Mode == ModeStrict {
		return DefaultStrictMaxRequests
	}
	return DefaultRelaxedMaxRequests
}

func (ac *AuditConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}

	switch ac.Type {
	case AuditTypeMemory:
		if ac.MaxEvents <= 0 {
			return fmt.Errorf("audit max_events must be positive for memory store, got %d", ac.MaxEvents)
		}
	case AuditTypeSQLite, AuditTypePostgres:
		if ac.DSN == "" {
			return fmt.Errorf("audit dsn is required for %s store", ac.Type)
		}
	default:
		return fmt.Errorf("unsupported audit store type: %s", ac.Type)
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", lc.Level)
	}

	switch strings.ToLower(lc.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s", lc.Format)
	}

	if strings.ToLower(lc.Output) == "file" && lc.FilePath == "" {
		return errors.New("file_path is required when log output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Port < 1 || mc.Port > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", mc.Port)
	}

	if !strings.HasPrefix(mc.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", mc.Path)
	}

	return nil
}
