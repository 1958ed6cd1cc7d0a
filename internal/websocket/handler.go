// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
)

// IdentityResolver turns a connection credential into a stable user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, credential string) (string, error)
}

// HandlerConfig configures the upgrade handler.
type HandlerConfig struct {
	// CookieName carries the session token for browser clients.
	CookieName string
	// AllowedOrigins is checked against the Origin header. "*" allows any.
	// An empty list allows any origin that is present.
	AllowedOrigins []string
}

// Handler authenticates and upgrades realtime connections.
type Handler struct {
	hub      *Hub
	resolver IdentityResolver
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the /ws handler.
func NewHandler(hub *Hub, resolver IdentityResolver, cfg HandlerConfig) *Handler {
	h := &Handler{hub: hub, resolver: resolver, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// ServeHTTP runs Connecting -> Authenticating -> Authenticated. A missing or
// invalid credential is refused with 401 before the upgrade, so no presence
// entry is ever created for it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.hub.Done():
		http.Error(w, "realtime service unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	credential := credentialFromRequest(r, h.cfg.CookieName)
	if credential == "" {
		metrics.WSAuthFailures.Inc()
		logging.Debug().Str("remote_addr", r.RemoteAddr).Msg("WebSocket connection rejected: no credential")
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	userID, err := h.resolver.ResolveIdentity(r.Context(), credential)
	if err != nil || userID == "" {
		metrics.WSAuthFailures.Inc()
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket connection rejected: invalid credential")
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := NewClient(h.hub, conn, userID)
	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		_ = conn.Close()
		return
	}
	client.Start()
}

// credentialFromRequest reads the token from the session cookie, a Bearer
// header, or the token query parameter, in that order.
func credentialFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		const prefix = "Bearer "
		if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
			return strings.TrimSpace(authz[len(prefix):])
		}
	}
	return r.URL.Query().Get("token")
}

// checkOrigin rejects requests without an Origin header; browsers always
// send one and omitting it would bypass CORS.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds the length of
// client-supplied values before they reach the log.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
