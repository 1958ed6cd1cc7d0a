// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package presence tracks which users are online and which live connection
// receives their realtime events.
//
// A user has at most one presence entry. A second connection from the same
// user overwrites the first entry, so only the newest connection receives
// pushes (last writer wins).
//
// Two backends implement Directory: MemoryDirectory for a single process and
// SharedDirectory for a key-value store shared by many processes. Select
// chooses one at startup from configuration and a single liveness probe.
// Backend failures never reach callers: reads degrade to the process-local
// mirror and writes are logged.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Mode is the presence backend chosen at startup.
type Mode string

const (
	// ModeMemory is an in-process directory chosen by configuration.
	ModeMemory Mode = "memory"
	// ModeShared is a directory backed by the shared key-value store.
	ModeShared Mode = "shared"
	// ModeDegraded is an in-process directory used because the shared
	// store failed its startup probe.
	ModeDegraded Mode = "degraded"
)

// Handle identifies one live realtime session (one per tab or device).
type Handle struct {
	// ID is unique across processes. Two handles are the same session
	// exactly when their IDs are equal.
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Instance  string    `json:"instance"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewHandle creates a handle for a freshly authenticated session.
func NewHandle(userID, instance string) Handle {
	return Handle{
		ID:        uuid.NewString(),
		UserID:    userID,
		Instance:  instance,
		CreatedAt: time.Now().UTC(),
	}
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// Directory maps user identities to their current connection handle.
//
// No method returns an error: implementations contain backend failures and
// answer from local state or with a safe default. The empty user ID is never
// online: AddOnline ignores it and lookups report it absent.
type Directory interface {
	// AddOnline records h as the user's current handle, replacing any prior one.
	AddOnline(ctx context.Context, userID string, h Handle)

	// RemoveOnline deletes the user's entry. Removing an absent user is a no-op.
	RemoveOnline(ctx context.Context, userID string)

	// RemoveIfCurrent deletes the user's entry only while it still points at h.
	// It reports whether an entry for h was removed.
	RemoveIfCurrent(ctx context.Context, userID string, h Handle) bool

	// Lookup returns the user's current handle, or false when the user is offline.
	Lookup(ctx context.Context, userID string) (Handle, bool)

	// ListOnline returns every online user ID in ascending order.
	ListOnline(ctx context.Context) []string

	// Mode reports which backend serves this directory.
	Mode() Mode
}
