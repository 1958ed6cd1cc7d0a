// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is an authentication-relevant event for audit logging.
type SecurityEvent struct {
	Event     string
	UserID    string
	Email     string
	IPAddress string
	Success   bool
	Error     string
}

// SecurityLogger logs authentication events with sensitive fields masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "auth").Logger()}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogEvent logs a security event.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Email != "" {
		e = e.Str("email", SanitizeEmail(event.Email))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("reason", event.Error)
	}
	e.Msg("security event")
}

// LogLoginSuccess records a successful login or signup.
func (l *SecurityLogger) LogLoginSuccess(event, userID, email, ip string) {
	l.LogEvent(&SecurityEvent{Event: event, UserID: userID, Email: email, IPAddress: ip, Success: true})
}

// LogLoginFailure records a rejected login attempt.
func (l *SecurityLogger) LogLoginFailure(email, ip, reason string) {
	l.LogEvent(&SecurityEvent{Event: "login", Email: email, IPAddress: ip, Error: reason})
}

// LogLogout records a logout.
func (l *SecurityLogger) LogLogout(userID, ip string) {
	l.LogEvent(&SecurityEvent{Event: "logout", UserID: userID, IPAddress: ip, Success: true})
}

// SanitizeToken masks a bearer token, keeping a short prefix for correlation.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:8] + "..."
}

// SanitizeEmail masks the local part of an email address.
//
//	SanitizeEmail("alice@example.com") == "a***@example.com"
func SanitizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "[REDACTED]"
	}
	return email[:1] + "***" + email[at:]
}
