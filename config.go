package goCtrl

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full configuration tree for a [Client]. Zero values are
// filled from defaultConfig by Builder.Build; instances are treated as
// immutable after Build.
type Config struct {
	Controller ControllerConfig
	Credential CredentialConfig
	Cache      CacheConfig
	Audit      AuditConfig
	Masking    MaskingConfig
	Metrics    MetricsConfig
}

/*
====================================
CONTROLLER CONFIG
====================================
*/

// ControllerConfig identifies the remote controller and this SDK instance.
type ControllerConfig struct {
	BaseURL       string
	TokenPath     string // default "/api/v1/auth/token"
	LogIngestPath string // default "/api/v1/logs"

	EnvironmentID string
	ApplicationID string
	ClientID      string
	ClientSecret  string

	RequestTimeout time.Duration // per outbound call, default 10s
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig controls the proactive-refresh windows of the client
// credential. A refresh is requested once time-to-expiry drops below
// RefreshWindow; the previous credential keeps serving until ExpiryBuffer
// before true expiry so a slow refresh does not stall callers.
type CredentialConfig struct {
	RefreshWindow time.Duration // default 60s
	ExpiryBuffer  time.Duration // default 30s
	FetchTimeout  time.Duration // default 5s
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig controls the Redis-backed authorization cache. With Enabled
// false (or no Redis client on the Builder) every lookup goes straight to
// the controller.
type CacheConfig struct {
	Enabled     bool
	RedisPrefix string        // default "goctrl"
	TTL         time.Duration // default 15m
	OpTimeout   time.Duration // per cache round trip, default 500ms
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// Debug adds masked headers, bodies, and connection context to every
	// record. Off in production unless chasing a concrete problem.
	Debug bool

	QueueKey        string // Redis list for queued records, default "goctrl:audit:queue"
	QueueMaxLen     int64  // default 10000
	DeliveryTimeout time.Duration
}

/*
====================================
MASKING CONFIG
====================================
*/

// MaskingConfig points at the optional external ruleset file. The merged
// ruleset (built-in defaults plus the file) is loaded once at Build.
type MaskingConfig struct {
	// RulesetPath overrides the GOCTRL_MASKING_RULESET environment
	// variable. A missing or malformed file falls back to the defaults.
	RulesetPath string
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the internal counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Controller: ControllerConfig{
			TokenPath:      "/api/v1/auth/token",
			LogIngestPath:  "/api/v1/logs",
			RequestTimeout: 10 * time.Second,
		},
		Credential: CredentialConfig{
			RefreshWindow: 60 * time.Second,
			ExpiryBuffer:  30 * time.Second,
			FetchTimeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:     true,
			RedisPrefix: "goctrl",
			TTL:         15 * time.Minute,
			OpTimeout:   500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:         true,
			BufferSize:      256,
			DropIfFull:      true,
			QueueKey:        "goctrl:audit:queue",
			QueueMaxLen:     10000,
			DeliveryTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

func applyConfigDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Controller.TokenPath == "" {
		cfg.Controller.TokenPath = def.Controller.TokenPath
	}
	if cfg.Controller.LogIngestPath == "" {
		cfg.Controller.LogIngestPath = def.Controller.LogIngestPath
	}
	if cfg.Controller.RequestTimeout <= 0 {
		cfg.Controller.RequestTimeout = def.Controller.RequestTimeout
	}
	if cfg.Credential.RefreshWindow <= 0 {
		cfg.Credential.RefreshWindow = def.Credential.RefreshWindow
	}
	if cfg.Credential.ExpiryBuffer <= 0 {
		cfg.Credential.ExpiryBuffer = def.Credential.ExpiryBuffer
	}
	if cfg.Credential.FetchTimeout <= 0 {
		cfg.Credential.FetchTimeout = def.Credential.FetchTimeout
	}
	if cfg.Cache.RedisPrefix == "" {
		cfg.Cache.RedisPrefix = def.Cache.RedisPrefix
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Cache.OpTimeout <= 0 {
		cfg.Cache.OpTimeout = def.Cache.OpTimeout
	}
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	if cfg.Audit.QueueKey == "" {
		cfg.Audit.QueueKey = def.Audit.QueueKey
	}
	if cfg.Audit.QueueMaxLen <= 0 {
		cfg.Audit.QueueMaxLen = def.Audit.QueueMaxLen
	}
	if cfg.Audit.DeliveryTimeout <= 0 {
		cfg.Audit.DeliveryTimeout = def.Audit.DeliveryTimeout
	}
}

func validateConfig(cfg Config) error {
	if cfg.Controller.BaseURL == "" {
		return fmt.Errorf("%w: controller.baseUrl is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(cfg.Controller.BaseURL, "http://") && !strings.HasPrefix(cfg.Controller.BaseURL, "https://") {
		return fmt.Errorf("%w: controller.baseUrl must be an absolute http(s) URL", ErrInvalidConfig)
	}
	if cfg.Controller.ClientID == "" || cfg.Controller.ClientSecret == "" {
		return fmt.Errorf("%w: controller.clientId and controller.clientSecret are required", ErrInvalidConfig)
	}
	if cfg.Controller.EnvironmentID == "" || cfg.Controller.ApplicationID == "" {
		return fmt.Errorf("%w: controller.environmentId and controller.applicationId are required", ErrInvalidConfig)
	}
	if cfg.Credential.ExpiryBuffer >= cfg.Credential.RefreshWindow {
		return fmt.Errorf("%w: credential.expiryBuffer must be smaller than credential.refreshWindow", ErrInvalidConfig)
	}
	return nil
}
