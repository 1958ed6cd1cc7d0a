// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"context"
	"time"

	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/presence"
)

// Version is reported by the health endpoint. Set at build time with
// -ldflags "-X github.com/tomtom215/parley/internal/api.Version=...".
var Version = "dev"

// Pinger reports whether the persistent store is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports the number of live realtime connections.
type ConnectionCounter interface {
	GetClientCount() int
}

// Dependencies are the collaborators of Handler.
type Dependencies struct {
	Auth     *chat.AuthService
	Messages *chat.MessageService
	Groups   *chat.GroupService
	Sessions *auth.Middleware
	Store    Pinger
	Presence presence.Directory
	Gateway  ConnectionCounter
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_auth.go: signup, login, logout, profile, check
//   - handlers_messages.go: sidebar, history, send, edit, delete, reactions, read receipts
//   - handlers_groups.go: group lifecycle and membership
//   - handlers_health.go: health, liveness and readiness probes
type Handler struct {
	auth      *chat.AuthService
	messages  *chat.MessageService
	groups    *chat.GroupService
	sessions  *auth.Middleware
	store     Pinger
	presence  presence.Directory
	gateway   ConnectionCounter
	security  *logging.SecurityLogger
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		auth:      deps.Auth,
		messages:  deps.Messages,
		groups:    deps.Groups,
		sessions:  deps.Sessions,
		store:     deps.Store,
		presence:  deps.Presence,
		gateway:   deps.Gateway,
		security:  logging.NewSecurityLogger(),
		startTime: time.Now(),
	}
}
