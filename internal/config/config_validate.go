// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/parley/internal/logging"
)

// MinJWTSecretLength is the minimum accepted length of the JWT signing secret.
const MinJWTSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validatePresence(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("NODE_ENV must be development, production or test, got %q", c.Server.Environment)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.Server.RequestTimeout > 0 && c.Server.WriteTimeout > 0 && c.Server.RequestTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must be less than WRITE_TIMEOUT (%s)", c.Server.RequestTimeout, c.Server.WriteTimeout)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Security.CookieName == "" {
		return fmt.Errorf("COOKIE_NAME must not be empty")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Security.BcryptCost)
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

func (c *Config) validateCORS() error {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			if c.IsProduction() {
				return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
			}
			continue
		}
		if err := validateOriginURL(origin, "CORS_ORIGINS"); err != nil {
			return err
		}
	}
	if c.Server.ClientURL != "" {
		return validateOriginURL(c.Server.ClientURL, "CLIENT_URL")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.AuthRateLimit < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be at least 1")
	}
	if c.Security.APIRateLimit < 1 {
		return fmt.Errorf("API_RATE_LIMIT must be at least 1")
	}
	if c.Security.MessageRateLimit < 1 {
		return fmt.Errorf("MESSAGE_RATE_LIMIT must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validatePresence() error {
	p := c.Presence
	switch p.Backend {
	case BackendAuto, BackendMemory, BackendNATS:
	default:
		return fmt.Errorf("PRESENCE_BACKEND must be auto, memory or nats, got %q", p.Backend)
	}
	if p.Backend == BackendNATS && p.NATSURL == "" && !p.EmbeddedServer {
		return fmt.Errorf("PRESENCE_BACKEND=nats requires NATS_URL or NATS_EMBEDDED=true")
	}
	if p.NATSURL != "" {
		if err := validateNATSURL(p.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}
	if p.Bucket == "" || strings.ContainsAny(p.Bucket, " .*>") {
		return fmt.Errorf("PRESENCE_BUCKET %q is not a valid bucket name", p.Bucket)
	}
	if p.ProbeTimeout <= 0 {
		return fmt.Errorf("PRESENCE_PROBE_TIMEOUT must be positive")
	}
	if p.EntryTTL < 0 {
		return fmt.Errorf("PRESENCE_ENTRY_TTL must not be negative")
	}
	if p.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("PRESENCE_BREAKER_THRESHOLD must be at least 1")
	}
	if p.Breaker.OpTimeout <= 0 {
		return fmt.Errorf("PRESENCE_BREAKER_OP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	r := c.Realtime
	if r.TypingTimeout <= 0 {
		return fmt.Errorf("TYPING_TIMEOUT must be positive")
	}
	if r.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if r.EventsPerSecond <= 0 || r.EventBurst < 1 {
		return fmt.Errorf("WS_EVENTS_PER_SECOND and WS_EVENT_BURST must be positive")
	}
	if r.PongWait <= 0 || r.WriteWait <= 0 {
		return fmt.Errorf("websocket write_wait and pong_wait must be positive")
	}
	if r.MaxMessageSize < 1024 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1024 bytes")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY=true")
	}
	if c.Storage.GCInterval <= 0 {
		return fmt.Errorf("BADGER_GC_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	l := c.Limits
	if l.MaxMessageLength < 1 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be at least 1")
	}
	if l.EditWindow <= 0 {
		return fmt.Errorf("EDIT_WINDOW must be positive")
	}
	if l.MaxGroupMembers < 2 {
		return fmt.Errorf("MAX_GROUP_MEMBERS must be at least 2")
	}
	if l.DefaultPageSize < 1 || l.MaxPageSize < l.DefaultPageSize {
		return fmt.Errorf("page sizes must satisfy 1 <= DEFAULT_PAGE_SIZE <= MAX_PAGE_SIZE")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
