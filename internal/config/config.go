// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package config loads Parley configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via mapped variables
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
package config

import "time"

// Presence backend names accepted by presence.backend.
const (
	BackendAuto   = "auto"
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Presence PresenceConfig `koanf:"presence"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Storage  StorageConfig  `koanf:"storage"`
	Limits   LimitsConfig   `koanf:"limits"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RequestTimeout bounds each /api request. It must stay below
	// WriteTimeout so the timeout response can still be written. Zero disables it.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// Environment is "development" or "production". Production enables
	// secure cookies and refuses wildcard CORS.
	Environment string `koanf:"environment"`

	// ClientURL is the browser origin allowed for CORS and websocket upgrades
	// when CORSOrigins is empty.
	ClientURL string `koanf:"client_url"`
}

// SecurityConfig holds authentication and rate limiting configuration.
type SecurityConfig struct {
	JWTSecret    string        `koanf:"jwt_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	CookieName   string        `koanf:"cookie_name"`
	CookieSecure bool          `koanf:"cookie_secure"`
	BcryptCost   int           `koanf:"bcrypt_cost"`
	CORSOrigins  []string      `koanf:"cors_origins"`

	// AuthRateLimit is the number of auth requests allowed per IP per RateLimitWindow.
	AuthRateLimit int `koanf:"auth_rate_limit"`
	// APIRateLimit is the number of API requests allowed per IP per RateLimitWindow.
	APIRateLimit    int           `koanf:"api_rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// MessageRateLimit is the number of message sends allowed per IP per minute.
	MessageRateLimit int `koanf:"message_rate_limit"`
}

// PresenceConfig selects and tunes the presence directory backend.
type PresenceConfig struct {
	// Backend is auto, memory or nats. auto uses the shared store when a
	// NATS URL or the embedded server is configured, memory otherwise.
	Backend string `koanf:"backend"`

	NATSURL string `koanf:"nats_url"`

	// EmbeddedServer starts an in-process NATS server with JetStream and
	// points the shared directory at it.
	EmbeddedServer   bool   `koanf:"embedded_server"`
	EmbeddedStoreDir string `koanf:"embedded_store_dir"`

	Bucket string `koanf:"bucket"`

	// ProbeTimeout bounds the single startup liveness probe.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	// EntryTTL expires shared entries that are not refreshed. Zero disables
	// expiry; entries then live until overwritten or removed.
	EntryTTL time.Duration `koanf:"entry_ttl"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around the shared store.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpTimeout        time.Duration `koanf:"op_timeout"`
}

// RealtimeConfig tunes the websocket gateway and typing indicators.
type RealtimeConfig struct {
	TypingTimeout   time.Duration `koanf:"typing_timeout"`
	SendBuffer      int           `koanf:"send_buffer"`
	EventsPerSecond float64       `koanf:"events_per_second"`
	EventBurst      int           `koanf:"event_burst"`
	WriteWait       time.Duration `koanf:"write_wait"`
	PongWait        time.Duration `koanf:"pong_wait"`
	MaxMessageSize  int64         `koanf:"max_message_size"`
}

// StorageConfig configures the badger store.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often the value log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// LimitsConfig holds chat domain limits.
type LimitsConfig struct {
	MaxMessageLength int           `koanf:"max_message_length"`
	EditWindow       time.Duration `koanf:"edit_window"`
	MaxGroupMembers  int           `koanf:"max_group_members"`
	DefaultPageSize  int           `koanf:"default_page_size"`
	MaxPageSize      int           `koanf:"max_page_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// AllowedOrigins returns the configured CORS origins, falling back to the client URL.
func (c *Config) AllowedOrigins() []string {
	if len(c.Security.CORSOrigins) > 0 {
		return c.Security.CORSOrigins
	}
	if c.Server.ClientURL != "" {
		return []string{c.Server.ClientURL}
	}
	return nil
}

// SharedPresence reports whether the configuration asks for the shared
// presence backend.
func (p *PresenceConfig) SharedPresence() bool {
	switch p.Backend {
	case BackendMemory:
		return false
	case BackendNATS:
		return true
	default:
		return p.NATSURL != "" || p.EmbeddedServer
	}
}
